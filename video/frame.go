package video

import (
	"time"

	"gocv.io/x/gocv"
)

// TimestampLayout is the layout of the overlay text and of clip file names
const TimestampLayout = "2006.01.02.15.04.05"

// Frame is a captured image and the time it was read
type Frame struct {
	Image     gocv.Mat
	Timestamp time.Time
}

// Close releases the underlying image
func (f *Frame) Close() {
	if f == nil {
		return
	}
	f.Image.Close()
}

// ReleaseFrame is a FrameReleaser for the motion detector and assembler
func ReleaseFrame(f *Frame) {
	f.Close()
}

// FormatTimestamp renders t the way it is burned into frames
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
