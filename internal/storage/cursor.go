package storage

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid page cursor")

// Page selects a slice of a newest-first listing. Size 0 means unbounded.
type Page struct {
	Size   int
	Cursor string
}

// Cursor points just past the last record of a page.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

func EncodeCursor(c Cursor) string {
	raw := c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Timestamp: t, ID: id}, nil
}

// After reports whether a record at (ts, id) sorts after the cursor in a
// newest-first listing.
func (c Cursor) After(ts time.Time, id string) bool {
	if ts.Equal(c.Timestamp) {
		return id < c.ID
	}
	return ts.Before(c.Timestamp)
}
