package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

func (r Repo) Journal(ctx context.Context, id int64) (myjournal.Journal, error) {
	return r.journalWhere(ctx, "id = ?", id)
}

// JournalByURL finds a journal by the site URL it was subscribed with.
func (r Repo) JournalByURL(ctx context.Context, url string) (myjournal.Journal, error) {
	return r.journalWhere(ctx, "url = ?", url)
}

func (r Repo) JournalByRSS(ctx context.Context, rss string) (myjournal.Journal, error) {
	return r.journalWhere(ctx, "rss = ?", rss)
}

func (r Repo) journalWhere(ctx context.Context, pred string, arg any) (myjournal.Journal, error) {
	q := `SELECT * FROM journals WHERE ` + pred + ` ORDER BY id LIMIT 1;`

	var j myjournal.Journal
	err := r.db.GetContext(ctx, &j, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return myjournal.Journal{}, myjournal.ErrNotFound
	}
	if err != nil {
		return myjournal.Journal{}, fmt.Errorf("error fetching journal: %s", err)
	}

	return j, nil
}

func (r Repo) InsertJournal(ctx context.Context, j myjournal.Journal) (myjournal.Journal, error) {
	const q = `INSERT INTO journals (name, url, rss) VALUES (:name, :url, :rss)
	ON CONFLICT (rss) DO NOTHING;`

	if _, err := r.db.NamedExecContext(ctx, q, j); err != nil {
		return myjournal.Journal{}, fmt.Errorf("error inserting journal: %s", err)
	}

	// Either the row we just wrote, or the one that beat us to it
	return r.JournalByRSS(ctx, j.RSS)
}

func (r Repo) Subscribe(ctx context.Context, userID, journalID int64) error {
	const q = `INSERT OR IGNORE INTO user_journal_association (user_id, journal_id) VALUES (?, ?);`

	if _, err := r.db.ExecContext(ctx, q, userID, journalID); err != nil {
		return fmt.Errorf("error creating subscription: %w", err)
	}

	return nil
}

func (r Repo) UserJournals(ctx context.Context, userID int64) ([]myjournal.Journal, error) {
	const q = `
	SELECT
		j.id,
		j.name,
		j.url,
		j.rss,
		j.created_at
	FROM
		journals j
		INNER JOIN user_journal_association uja ON uja.journal_id = j.id
	WHERE
		uja.user_id = ?
	ORDER BY uja.created_at, j.id;
	`

	journals := []myjournal.Journal{}
	if err := r.db.SelectContext(ctx, &journals, q, userID); err != nil {
		return nil, fmt.Errorf("error selecting user journals: %s", err)
	}

	return journals, nil
}
