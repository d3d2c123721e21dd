package video

import (
	"testing"
	"time"
)

func TestRotatedSize(t *testing.T) {
	tests := []struct {
		name         string
		angle        float64
		wantW, wantH int
	}{
		{"none", 0, 960, 720},
		{"quarter", 90, 720, 960},
		{"half", 180, 960, 720},
		{"negative quarter", -90, 720, 960},
		{"diagonal", 45, 1187, 1187},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := RotatedSize(960, 720, tt.angle)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("RotatedSize(960, 720, %v) = %dx%d, expected %dx%d", tt.angle, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)
	if got := FormatTimestamp(ts); got != "2024.03.09.07.05.03" {
		t.Errorf("Unexpected timestamp text: %s", got)
	}
}

func TestGoCVClipEncoder_FileExtension(t *testing.T) {
	if ext := NewGoCVClipEncoder("mp4v", 30, 0, nil).FileExtension(); ext != ".mp4" {
		t.Errorf("Expected .mp4, got %s", ext)
	}
	if ext := NewGoCVClipEncoder("MJPG", 30, 0, nil).FileExtension(); ext != ".avi" {
		t.Errorf("Expected .avi, got %s", ext)
	}
}
