package resolution

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Resolution
		wantErr  bool
	}{
		{input: "960x720", expected: Resolution{Width: 960, Height: 720}},
		{input: "1280:720", expected: Resolution{Width: 1280, Height: 720}},
		{input: " 640X480 ", expected: Resolution{Width: 640, Height: 480}},
		{input: "720p", expected: Resolution{Width: 1280, Height: 720}},
		{input: "1080p", expected: Resolution{Width: 1920, Height: 1080}},
		{input: "999p", wantErr: true},
		{input: "960x", wantErr: true},
		{input: "0x720", wantErr: true},
		{input: "axb", wantErr: true},
		{input: "960", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.input, res)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, res)
			}
		})
	}
}

func TestResolution_ScaleToWidth(t *testing.T) {
	res := Resolution{Width: 960, Height: 720}

	scaled := res.ScaleToWidth(300)
	if scaled.Width != 300 || scaled.Height != 225 {
		t.Errorf("Expected 300x225, got %v", scaled)
	}

	if !(Resolution{}).ScaleToWidth(300).IsEmpty() {
		t.Error("Scaling an empty resolution should stay empty")
	}
}

func TestResolution_AreaAndString(t *testing.T) {
	res := Resolution{Width: 960, Height: 720}
	if res.Area() != 691200 {
		t.Errorf("Expected area 691200, got %d", res.Area())
	}
	if res.String() != "960x720" {
		t.Errorf("Expected 960x720, got %s", res.String())
	}
}
