package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx_AttrsAreLogged(t *testing.T) {
	var (
		buf = &bytes.Buffer{}
		l   = New("json", buf)
		ctx = Ctx(context.Background(), slog.Int64("user_id", 7))
	)
	ctx = Ctx(ctx, slog.Int64("journal_id", 3))

	l.InfoContext(ctx, "refreshing")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "refreshing", line["msg"])
	assert.EqualValues(t, 7, line["user_id"])
	assert.EqualValues(t, 3, line["journal_id"])
}

func TestCtx_ParentUntouched(t *testing.T) {
	parent := Ctx(context.Background(), slog.String("a", "1"))
	_ = Ctx(parent, slog.String("b", "2"))
	_ = Ctx(parent, slog.String("c", "3"))

	assert.Len(t, attrsFrom(parent), 1)
}
