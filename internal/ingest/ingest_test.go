package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdholdren/myjournal/internal/migrations"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/sqlite"
)

func newTestRepo(t *testing.T) sqlite.Repo {
	t.Helper()

	dbx, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	return sqlite.New(dbx)
}

func testUser(t *testing.T, r sqlite.Repo, name string) myjournal.User {
	t.Helper()

	usr, err := r.InsertUser(context.Background(), myjournal.User{
		Username:       name,
		Email:          name + "@example.com",
		HashedPassword: "not-a-real-hash",
	})
	require.NoError(t, err)
	return usr
}
