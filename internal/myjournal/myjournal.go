// Package myjournal holds the domain types shared by the storage, ingestion
// and API layers.
package myjournal

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")

	// ErrFeedNotFound is returned when every discovery strategy came up empty.
	ErrFeedNotFound = errors.New("no feed could be found")
	// ErrInvalidFeed is returned when a candidate feed is malformed or has no title.
	ErrInvalidFeed = errors.New("feed is unavailable or invalid")
	// ErrNetwork marks transient failures worth retrying: timeouts, refused
	// connections, server errors and rate limiting.
	ErrNetwork = errors.New("network error")
	// ErrStorage marks a failed write that was rolled back.
	ErrStorage = errors.New("storage error")
)

type (
	// Journal is a news source a user subscribes to, keyed by its feed URL.
	Journal struct {
		ID        int64     `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		URL       string    `db:"url" json:"url"`
		RSS       string    `db:"rss" json:"rss"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
	}

	User struct {
		ID              int64     `db:"id"`
		Username        string    `db:"username"`
		Email           string    `db:"email"`
		HashedPassword  string    `db:"hashed_password"`
		FirstName       *string   `db:"first_name"`
		LastName        *string   `db:"last_name"`
		NewsletterOptIn bool      `db:"newsletter_opt_in"`
		IsActive        bool      `db:"is_active"`
		IsAdmin         bool      `db:"is_admin"`
		CreatedAt       time.Time `db:"created_at"`
	}

	// Article is a single stored news item. URL is unique across the table.
	Article struct {
		ID           int64     `db:"id"`
		Title        string    `db:"title"`
		URL          string    `db:"url"`
		PublishedAt  time.Time `db:"published_at"`
		DownloadedAt time.Time `db:"downloaded_at"`
		Topic        *string   `db:"topic"`
		Summary      *string   `db:"summary"`
		Author       *string   `db:"author"`
		ImageURL     *string   `db:"image_url"`
		Generic      bool      `db:"generic_news"`
		UserID       *int64    `db:"user_id"`
		JournalID    int64     `db:"journal_id"`

		// Joined from journals for listings
		SourceName string `db:"source_name"`
	}

	// FetchedEntry is a normalized feed entry on its way to the article store.
	//
	// Published is an ISO-8601 string for feed entries, but may be any
	// free-form date when the entry came from elsewhere; the store parses it.
	FetchedEntry struct {
		Title     string
		URL       string
		Published string
		Topic     *string
		Author    *string
		Summary   *string
		ImagePath *string
	}

	// ArticleFilter narrows an article listing. Zero values mean "no filter".
	ArticleFilter struct {
		Topics      []string
		Sources     []string
		TitleSearch string
		Generic     *bool
		UserID      *int64

		// Limit of 0 returns everything.
		Limit  uint64
		Offset uint64
	}

	// UpdateUserArgs holds the optional fields for a profile update.
	UpdateUserArgs struct {
		Email           *string
		Username        *string
		NewsletterOptIn *bool
	}
)

type (
	UserRepo interface {
		InsertUser(ctx context.Context, usr User) (User, error)
		User(ctx context.Context, id int64) (User, error)
		UserByEmail(ctx context.Context, email string) (User, error)
		UserByUsername(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, id int64, args UpdateUserArgs) (User, error)
		AllUserIDs(ctx context.Context) ([]int64, error)
	}

	JournalRepo interface {
		Journal(ctx context.Context, id int64) (Journal, error)
		JournalByURL(ctx context.Context, url string) (Journal, error)
		JournalByRSS(ctx context.Context, rss string) (Journal, error)
		// InsertJournal returns the existing row when the feed URL is already known.
		InsertJournal(ctx context.Context, j Journal) (Journal, error)
		Subscribe(ctx context.Context, userID, journalID int64) error
		UserJournals(ctx context.Context, userID int64) ([]Journal, error)
	}

	ArticleRepo interface {
		// UpsertBatch inserts entries, skipping URLs already stored, and reports
		// how many rows were written. A failed batch is rolled back whole and
		// comes back as 0 with an error wrapping ErrStorage.
		UpsertBatch(ctx context.Context, entries []FetchedEntry, journalID int64, userID *int64, generic bool) (int, error)
		Articles(ctx context.Context, filter ArticleFilter) ([]Article, error)
		Article(ctx context.Context, id int64) (Article, error)
		// PruneOlderThan is best effort: failures are logged and reported as 0.
		PruneOlderThan(ctx context.Context, days int) int
	}

	Repository interface {
		UserRepo
		JournalRepo
		ArticleRepo
	}
)
