package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestLedger(t *testing.T) (*SQLiteLedger, func()) {
	testDB, err := NewInMemoryDB()
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}

	ledger, err := NewSQLiteLedger(testDB)
	if err != nil {
		testDB.Close()
		t.Fatalf("Failed to create ledger: %v", err)
	}

	cleanup := func() {
		testDB.Close()
	}

	return ledger, cleanup
}

func createTestRecord(createdAt time.Time, name string) *ClipRecord {
	return &ClipRecord{
		ID:           uuid.New(),
		Path:         filepath.Join("/data/out", name),
		RelativePath: "out/" + name,
		Frames:       125,
		CreatedAt:    createdAt,
	}
}

func TestSQLiteLedger_AddAndList(t *testing.T) {
	ledger, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	first := createTestRecord(base, "a.mp4")
	second := createTestRecord(base.Add(500*time.Millisecond), "b.mp4")
	third := createTestRecord(base.Add(time.Second), "c.mp4")
	for _, r := range []*ClipRecord{second, third, first} {
		if err := ledger.Add(ctx, r); err != nil {
			t.Fatalf("Failed to add clip: %v", err)
		}
	}

	records, err := ledger.List(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list clips: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != third.ID || records[1].ID != second.ID {
		t.Errorf("Expected newest first, got %s, %s", records[0].RelativePath, records[1].RelativePath)
	}

	got := records[0]
	if got.Status != StatusPending || got.Frames != 125 || got.Path != third.Path || !got.CreatedAt.Equal(third.CreatedAt) {
		t.Errorf("Unexpected record %+v", got)
	}
	if got.UploadedAt != nil || got.LastError != "" {
		t.Errorf("Expected no upload data, got %+v", got)
	}

	all, err := ledger.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("Expected all 3 records, got %d (%v)", len(all), err)
	}
}

func TestSQLiteLedger_DuplicateID(t *testing.T) {
	ledger, cleanup := setupTestLedger(t)
	defer cleanup()

	record := createTestRecord(time.Now(), "a.mp4")
	if err := ledger.Add(context.Background(), record); err != nil {
		t.Fatalf("Failed to add clip: %v", err)
	}
	if err := ledger.Add(context.Background(), record); err == nil {
		t.Error("Expected error for duplicate clip ID")
	}
}

func TestSQLiteLedger_StatusTransitions(t *testing.T) {
	ledger, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	uploaded := createTestRecord(base, "a.mp4")
	failed := createTestRecord(base.Add(time.Second), "b.mp4")
	pending := createTestRecord(base.Add(2*time.Second), "c.mp4")
	for _, r := range []*ClipRecord{uploaded, failed, pending} {
		if err := ledger.Add(ctx, r); err != nil {
			t.Fatalf("Failed to add clip: %v", err)
		}
	}

	uploadedAt := base.Add(time.Minute)
	if err := ledger.MarkUploaded(ctx, uploaded.ID, 2, uploadedAt); err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	if err := ledger.MarkFailed(ctx, failed.ID, 4, errors.New("550 permission denied")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	pendingRecords, err := ledger.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pendingRecords) != 1 || pendingRecords[0].ID != pending.ID {
		t.Errorf("Expected only the pending clip, got %+v", pendingRecords)
	}

	records, _ := ledger.List(ctx, 0)
	byID := make(map[uuid.UUID]*ClipRecord)
	for _, r := range records {
		byID[r.ID] = r
	}

	u := byID[uploaded.ID]
	if u.Status != StatusUploaded || u.Attempts != 2 || u.UploadedAt == nil || !u.UploadedAt.Equal(uploadedAt) {
		t.Errorf("Unexpected uploaded record %+v", u)
	}
	f := byID[failed.ID]
	if f.Status != StatusFailed || f.Attempts != 4 || f.LastError != "550 permission denied" {
		t.Errorf("Unexpected failed record %+v", f)
	}

	counts, err := ledger.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts[StatusPending] != 1 || counts[StatusUploaded] != 1 || counts[StatusFailed] != 1 {
		t.Errorf("Unexpected counts %v", counts)
	}
}

func TestSQLiteLedger_MarkUnknownClip(t *testing.T) {
	ledger, cleanup := setupTestLedger(t)
	defer cleanup()

	if err := ledger.MarkUploaded(context.Background(), uuid.New(), 1, time.Now()); err == nil {
		t.Error("Expected error for unknown clip")
	}
}

func TestOpenDB_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "mocap.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	ledger, err := NewSQLiteLedger(db)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	if err := ledger.Add(context.Background(), createTestRecord(time.Now(), "a.mp4")); err != nil {
		t.Fatalf("Failed to add clip: %v", err)
	}
}

func TestTimeToString_SortsAsText(t *testing.T) {
	whole := time.Date(2024, 6, 15, 12, 0, 1, 0, time.UTC)
	fraction := time.Date(2024, 6, 15, 12, 0, 0, 500_000_000, time.UTC)
	if !(TimeToString(fraction) < TimeToString(whole)) {
		t.Errorf("Expected %s < %s", TimeToString(fraction), TimeToString(whole))
	}
	parsed, err := StringToTime(TimeToString(fraction))
	if err != nil || !parsed.Equal(fraction) {
		t.Errorf("Round trip failed: %v %v", parsed, err)
	}
}

func TestNopLedger(t *testing.T) {
	var l Ledger = NopLedger{}
	if err := l.Add(context.Background(), createTestRecord(time.Now(), "a.mp4")); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
	if records, _ := l.ListPending(context.Background()); len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}
