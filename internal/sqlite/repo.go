// Package sqlite is the sqlite-backed store for users, journals and articles.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

var _ myjournal.Repository = Repo{}

// Sqlite's extended code for a UNIQUE constraint violation.
const codeConstraintUnique = 2067

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}

// Open connects to the database file at path with the pragmas the store relies on.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	dbx, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	return dbx, nil
}
