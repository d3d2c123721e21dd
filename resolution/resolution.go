package resolution

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution is a frame size in pixels
type Resolution struct {
	Width  int
	Height int
}

var presets = map[string]Resolution{
	"240p":  {Width: 426, Height: 240},
	"360p":  {Width: 640, Height: 360},
	"480p":  {Width: 854, Height: 480},
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
}

// String returns the WxH form (e.g. 960x720)
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// IsEmpty checks if either dimension is unset
func (r Resolution) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns the number of pixels in a frame of this size
func (r Resolution) Area() int {
	return r.Width * r.Height
}

// ScaleToWidth returns the resolution resized to the given width with the aspect ratio kept.
func (r Resolution) ScaleToWidth(width int) Resolution {
	if r.Width <= 0 {
		return Resolution{}
	}
	height := int(float64(r.Height) * float64(width) / float64(r.Width))
	return Resolution{Width: width, Height: height}
}

// Parse converts a string representation of a resolution into a Resolution.
// Supported formats: "960x720", "960:720" and the presets "240p" through "1080p".
func Parse(resolutionStr string) (Resolution, error) {
	s := strings.ToLower(strings.TrimSpace(resolutionStr))

	switch {
	case strings.Contains(s, "x"):
		return parseDimensions(s, "x")
	case strings.Contains(s, ":"):
		return parseDimensions(s, ":")
	case strings.HasSuffix(s, "p"):
		if res, ok := presets[s]; ok {
			return res, nil
		}
		return Resolution{}, fmt.Errorf("unsupported resolution preset: %s", resolutionStr)
	default:
		return Resolution{}, fmt.Errorf("invalid resolution format: %s", resolutionStr)
	}
}

func parseDimensions(dimStr, sep string) (Resolution, error) {
	parts := strings.Split(dimStr, sep)
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("invalid dimensions: %s", dimStr)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("invalid width: %s", parts[0])
	}

	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("invalid height: %s", parts[1])
	}

	return Resolution{Width: width, Height: height}, nil
}
