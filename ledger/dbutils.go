package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is RFC3339 with a fixed nanosecond width so stored times sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TimeToString converts a time.Time to a UTC string for database storage
func TimeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// StringToTime converts a stored string from database to time.Time
func StringToTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// TimePtrToString converts a *time.Time to string for database storage
// Returns nil if the pointer is nil, otherwise converts the time value
func TimePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	result := TimeToString(*t)
	return &result
}

// OpenDB opens the ledger database file, creating its directory if needed
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000&_synchronous=NORMAL")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

// NewInMemoryDB creates a new in-memory SQLite database for testing
func NewInMemoryDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}

	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
