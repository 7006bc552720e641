package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// NewSQLite opens a file-backed SQLite store. ":memory:" gives a private
// in-memory database. The schema is applied on open.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; an open replacement holds the only connection.
	db.SetMaxOpenConns(1)
	s := &SQL{db: db, d: dialectSQLite}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
