package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"

	"github.com/jdholdren/myjournal/internal/myjournal"
)

func (r Repo) InsertUser(ctx context.Context, usr myjournal.User) (myjournal.User, error) {
	const q = `INSERT INTO users (username, email, hashed_password, first_name, last_name, newsletter_opt_in)
	VALUES (:username, :email, :hashed_password, :first_name, :last_name, :newsletter_opt_in);`

	res, err := r.db.NamedExecContext(ctx, q, usr)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == codeConstraintUnique {
		return myjournal.User{}, fmt.Errorf("user already exists: %w", myjournal.ErrConflict)
	}
	if err != nil {
		return myjournal.User{}, fmt.Errorf("error inserting user: %s", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return myjournal.User{}, fmt.Errorf("error reading user id: %s", err)
	}

	return r.User(ctx, id)
}

func (r Repo) User(ctx context.Context, id int64) (myjournal.User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

func (r Repo) UserByEmail(ctx context.Context, email string) (myjournal.User, error) {
	return r.userWhere(ctx, "email = ?", email)
}

func (r Repo) UserByUsername(ctx context.Context, username string) (myjournal.User, error) {
	return r.userWhere(ctx, "username = ?", username)
}

func (r Repo) userWhere(ctx context.Context, pred string, arg any) (myjournal.User, error) {
	q := `SELECT * FROM users WHERE ` + pred + `;`

	var usr myjournal.User
	err := r.db.GetContext(ctx, &usr, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return myjournal.User{}, myjournal.ErrNotFound
	}
	if err != nil {
		return myjournal.User{}, fmt.Errorf("error fetching user: %s", err)
	}

	return usr, nil
}

func (r Repo) UpdateUser(ctx context.Context, id int64, args myjournal.UpdateUserArgs) (myjournal.User, error) {
	q := sq.Update("users")
	changed := false
	if args.Email != nil {
		q = q.Set("email", *args.Email)
		changed = true
	}
	if args.Username != nil {
		q = q.Set("username", *args.Username)
		changed = true
	}
	if args.NewsletterOptIn != nil {
		q = q.Set("newsletter_opt_in", *args.NewsletterOptIn)
		changed = true
	}
	if !changed {
		return r.User(ctx, id)
	}

	query, qArgs, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return myjournal.User{}, fmt.Errorf("error constructing sql: %s", err)
	}
	_, err = r.db.ExecContext(ctx, query, qArgs...)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == codeConstraintUnique {
		return myjournal.User{}, fmt.Errorf("email or username taken: %w", myjournal.ErrConflict)
	}
	if err != nil {
		return myjournal.User{}, fmt.Errorf("error updating user: %s", err)
	}

	return r.User(ctx, id)
}

// AllUserIDs returns all user IDs from the database.
func (r Repo) AllUserIDs(ctx context.Context) ([]int64, error) {
	const q = `SELECT id FROM users WHERE is_active = 1 ORDER BY id;`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("error selecting user ids: %s", err)
	}

	return ids, nil
}
