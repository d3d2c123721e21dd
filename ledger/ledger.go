package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ClipStatus string

const (
	StatusPending  ClipStatus = "pending"
	StatusUploaded ClipStatus = "uploaded"
	StatusFailed   ClipStatus = "failed"
)

// ClipRecord tracks an assembled clip until it reaches the remote store
type ClipRecord struct {
	ID           uuid.UUID  `json:"id"`
	Path         string     `json:"path"`
	RelativePath string     `json:"relative_path"`
	Frames       int        `json:"frames"`
	CreatedAt    time.Time  `json:"created_at"`
	Status       ClipStatus `json:"status"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	UploadedAt   *time.Time `json:"uploaded_at,omitempty"`
}

// Ledger records the upload state of assembled clips across restarts
type Ledger interface {
	// Add stores a new clip as pending
	Add(ctx context.Context, record *ClipRecord) error

	// MarkUploaded marks a clip as uploaded after attempts upload attempts
	MarkUploaded(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error

	// MarkFailed marks a clip as failed after attempts upload attempts
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, cause error) error

	// ListPending returns pending clips, oldest first
	ListPending(ctx context.Context) ([]*ClipRecord, error)

	// List returns the most recent clips, newest first; a limit of 0 or less returns all
	List(ctx context.Context, limit int) ([]*ClipRecord, error)

	// Counts returns the number of clips per status
	Counts(ctx context.Context) (map[ClipStatus]int, error)
}

// SQLiteLedger implements Ledger using SQLite
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger creates a new SQLite-based Ledger
func NewSQLiteLedger(db *sql.DB) (*SQLiteLedger, error) {
	ledger := &SQLiteLedger{db: db}
	if err := ledger.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return ledger, nil
}

// createTables ensures that the required tables exist
func (l *SQLiteLedger) createTables() error {
	createClipsTable := `
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		frames INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		uploaded_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_clips_status ON clips(status, created_at);`

	_, err := l.db.Exec(createClipsTable)
	return err
}

func (l *SQLiteLedger) Add(ctx context.Context, record *ClipRecord) error {
	if record.Status == "" {
		record.Status = StatusPending
	}

	query := `
	INSERT INTO clips (id, path, relative_path, frames, created_at, status, attempts, last_error, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, query,
		record.ID.String(), record.Path, record.RelativePath, record.Frames, TimeToString(record.CreatedAt),
		string(record.Status), record.Attempts, nullString(record.LastError), TimePtrToString(record.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add clip: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) MarkUploaded(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error {
	query := `UPDATE clips SET status = ?, attempts = attempts + ?, last_error = NULL, uploaded_at = ? WHERE id = ?`
	return l.update(ctx, query, string(StatusUploaded), attempts, TimeToString(at), id.String())
}

func (l *SQLiteLedger) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	query := `UPDATE clips SET status = ?, attempts = attempts + ?, last_error = ? WHERE id = ?`
	return l.update(ctx, query, string(StatusFailed), attempts, nullString(message), id.String())
}

func (l *SQLiteLedger) update(ctx context.Context, query string, args ...any) error {
	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update clip: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update clip: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("clip %s not found", args[len(args)-1])
	}
	return nil
}

func (l *SQLiteLedger) ListPending(ctx context.Context) ([]*ClipRecord, error) {
	query := selectClips + ` WHERE status = ? ORDER BY created_at ASC, id ASC`
	return l.query(ctx, query, string(StatusPending))
}

func (l *SQLiteLedger) List(ctx context.Context, limit int) ([]*ClipRecord, error) {
	query := selectClips + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		return l.query(ctx, query+` LIMIT ?`, limit)
	}
	return l.query(ctx, query)
}

func (l *SQLiteLedger) Counts(ctx context.Context) (map[ClipStatus]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM clips GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count clips: %w", err)
	}
	defer rows.Close()

	counts := make(map[ClipStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan clip count: %w", err)
		}
		counts[ClipStatus(status)] = count
	}
	return counts, rows.Err()
}

const selectClips = `
	SELECT id, path, relative_path, frames, created_at, status, attempts, last_error, uploaded_at
	FROM clips`

func (l *SQLiteLedger) query(ctx context.Context, query string, args ...any) ([]*ClipRecord, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	var records []*ClipRecord
	for rows.Next() {
		record := &ClipRecord{}
		var idStr, createdAtStr, status string
		var lastError, uploadedAtStr sql.NullString
		err := rows.Scan(
			&idStr, &record.Path, &record.RelativePath, &record.Frames, &createdAtStr,
			&status, &record.Attempts, &lastError, &uploadedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}

		if record.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("failed to parse clip ID: %w", err)
		}
		if record.CreatedAt, err = StringToTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if uploadedAtStr.Valid {
			uploadedAt, err := StringToTime(uploadedAtStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse uploaded_at: %w", err)
			}
			record.UploadedAt = &uploadedAt
		}
		record.Status = ClipStatus(status)
		record.LastError = lastError.String
		records = append(records, record)
	}

	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NopLedger discards everything; used when no ledger database is configured
type NopLedger struct{}

func (NopLedger) Add(context.Context, *ClipRecord) error { return nil }

func (NopLedger) MarkUploaded(context.Context, uuid.UUID, int, time.Time) error { return nil }

func (NopLedger) MarkFailed(context.Context, uuid.UUID, int, error) error { return nil }

func (NopLedger) ListPending(context.Context) ([]*ClipRecord, error) { return nil, nil }

func (NopLedger) List(context.Context, int) ([]*ClipRecord, error) { return nil, nil }

func (NopLedger) Counts(context.Context) (map[ClipStatus]int, error) {
	return map[ClipStatus]int{}, nil
}
