package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

var articleColumns = []string{
	"title",
	"url",
	"published_at",
	"downloaded_at",
	"topic",
	"summary",
	"author",
	"image_url",
	"generic_news",
	"user_id",
	"journal_id",
}

// UpsertBatch writes entries in a single statement, leaving rows whose url is
// already present untouched.
func (r Repo) UpsertBatch(ctx context.Context, entries []myjournal.FetchedEntry, journalID int64, userID *int64, generic bool) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var (
		downloadedAt = time.Now().UTC().Truncate(time.Second)
		q            = sq.Insert("articles").Columns(articleColumns...)
		rows         int
	)
	for _, e := range entries {
		if e.Title == "" || e.URL == "" || e.Published == "" {
			slog.WarnContext(ctx, "skipping article missing required fields", "title", e.Title, "url", e.URL)
			continue
		}
		published := ParseDateTime(e.Published)
		if published == nil {
			slog.WarnContext(ctx, "skipping article with unreadable publish date", "url", e.URL, "published", e.Published)
			continue
		}

		q = q.Values(
			e.Title,
			e.URL,
			published.UTC().Truncate(time.Second),
			downloadedAt,
			e.Topic,
			e.Summary,
			e.Author,
			e.ImagePath,
			generic,
			userID,
			journalID,
		)
		rows++
	}
	if rows == 0 {
		slog.InfoContext(ctx, "no articles left to insert")
		return 0, nil
	}

	query, args, err := q.Suffix("ON CONFLICT (url) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w: %s", myjournal.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		slog.ErrorContext(ctx, "error inserting articles, rolled back", "error", err)
		return 0, fmt.Errorf("error inserting articles: %w: %s", myjournal.ErrStorage, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting inserted articles: %w: %s", myjournal.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing articles: %w: %s", myjournal.ErrStorage, err)
	}

	slog.InfoContext(ctx, "saved articles", "inserted", inserted, "candidates", rows)
	return int(inserted), nil
}

// Articles lists articles newest first. Every filter present is ANDed.
func (r Repo) Articles(ctx context.Context, filter myjournal.ArticleFilter) ([]myjournal.Article, error) {
	q := sq.Select("a.*", "j.name AS source_name").
		From("articles a").
		Join("journals j ON j.id = a.journal_id").
		OrderBy("a.published_at DESC", "a.id DESC")

	if len(filter.Topics) > 0 {
		q = q.Where(sq.Eq{"a.topic": filter.Topics})
	}
	if len(filter.Sources) > 0 {
		q = q.Where(sq.Eq{"j.name": filter.Sources})
	}
	if filter.TitleSearch != "" {
		q = q.Where(`LOWER(a.title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(filter.TitleSearch))+"%")
	}
	if filter.Generic != nil {
		q = q.Where(sq.Eq{"a.generic_news": *filter.Generic})
	}
	if filter.UserID != nil {
		q = q.Where(sq.Eq{"a.user_id": *filter.UserID})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	articles := []myjournal.Article{}
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting articles: %s", err)
	}

	return articles, nil
}

func (r Repo) Article(ctx context.Context, id int64) (myjournal.Article, error) {
	const q = `SELECT a.*, j.name AS source_name
	FROM articles a INNER JOIN journals j ON j.id = a.journal_id
	WHERE a.id = ?;`

	var a myjournal.Article
	err := r.db.GetContext(ctx, &a, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return myjournal.Article{}, myjournal.ErrNotFound
	}
	if err != nil {
		return myjournal.Article{}, fmt.Errorf("error fetching article: %s", err)
	}

	return a, nil
}

// PruneOlderThan deletes every article published more than days ago.
func (r Repo) PruneOlderThan(ctx context.Context, days int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "error beginning prune transaction", "error", err)
		return 0
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE published_at < ?;`, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "error pruning articles, rolled back", "error", err)
		return 0
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "error counting pruned articles", "error", err)
		return 0
	}
	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "error committing prune", "error", err)
		return 0
	}

	slog.InfoContext(ctx, "pruned old articles", "deleted", deleted, "days", days)
	return int(deleted)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
