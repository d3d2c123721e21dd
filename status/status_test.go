package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/mocap/ledger"
	"github.com/yeti47/mocap/pipeline"
)

type fixedStats struct {
	stats pipeline.Stats
}

func (f fixedStats) Stats() pipeline.Stats { return f.stats }

func setupStatusTest(t *testing.T, clips int) (http.Handler, func()) {
	t.Helper()

	testDB, err := ledger.NewInMemoryDB()
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	clipLedger, err := ledger.NewSQLiteLedger(testDB)
	if err != nil {
		testDB.Close()
		t.Fatalf("Failed to create ledger: %v", err)
	}

	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < clips; i++ {
		record := &ledger.ClipRecord{
			ID:           uuid.New(),
			Path:         "/data/out/clip.mp4",
			RelativePath: "out/clip.mp4",
			Frames:       100 + i,
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := clipLedger.Add(context.Background(), record); err != nil {
			t.Fatalf("Failed to add clip: %v", err)
		}
	}

	stats := fixedStats{stats: pipeline.Stats{Running: true, FramesRead: 42, Uploaded: 3}}
	router := NewRouter(NewStatusHandler(nil, stats, clipLedger))
	return router, func() { testDB.Close() }
}

func get(t *testing.T, handler http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, cleanup := setupStatusTest(t, 0)
	defer cleanup()

	rec := get(t, router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestGetStats(t *testing.T) {
	router, cleanup := setupStatusTest(t, 0)
	defer cleanup()

	rec := get(t, router, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var stats pipeline.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if !stats.Running || stats.FramesRead != 42 || stats.Uploaded != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestGetClips(t *testing.T) {
	router, cleanup := setupStatusTest(t, 5)
	defer cleanup()

	tests := []struct {
		name     string
		url      string
		code     int
		expected int
	}{
		{"default limit", "/api/clips", http.StatusOK, 5},
		{"explicit limit", "/api/clips?limit=2", http.StatusOK, 2},
		{"invalid limit", "/api/clips?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "/api/clips?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.url)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var resp ClipsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if len(resp.Clips) != tt.expected {
				t.Errorf("Expected %d clips, got %d", tt.expected, len(resp.Clips))
			}
			if resp.Counts[ledger.StatusPending] != 5 {
				t.Errorf("Expected 5 pending clips counted, got %v", resp.Counts)
			}
			if len(resp.Clips) > 0 && resp.Clips[0].Frames != 104 {
				t.Errorf("Expected newest clip first, got %+v", resp.Clips[0])
			}
		})
	}
}

func TestGetClips_EmptyLedger(t *testing.T) {
	router := NewRouter(NewStatusHandler(nil, fixedStats{}, nil))

	rec := get(t, router, "/api/clips")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp ClipsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Clips == nil || len(resp.Clips) != 0 {
		t.Errorf("Expected an empty clip list, got %v", resp.Clips)
	}
}
