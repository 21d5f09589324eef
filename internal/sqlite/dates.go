package sqlite

import (
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDateTime reads a date in whatever shape a feed or news API hands over.
// Dates without a zone are taken as local time. Unreadable input yields nil.
func ParseDateTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	t, err := dateparse.ParseIn(s, time.Local)
	if err != nil {
		slog.Warn("error parsing date", "date", s, "error", err)
		return nil
	}

	return &t
}
