package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	blurKernelSize = 21
	pixelThreshold = 25
)

// GoCVAnalyzer computes grayscale, blurred, downscaled motion signatures
type GoCVAnalyzer struct {
	width int
}

// NewGoCVAnalyzer creates an analyzer producing signatures of the given width
func NewGoCVAnalyzer(signatureWidth int) *GoCVAnalyzer {
	return &GoCVAnalyzer{width: signatureWidth}
}

func (a *GoCVAnalyzer) Signature(frame *Frame) (gocv.Mat, error) {
	if frame == nil || frame.Image.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty frame")
	}

	cols, rows := frame.Image.Cols(), frame.Image.Rows()
	height := rows * a.width / cols

	small := gocv.NewMat()
	defer small.Close()
	if err := gocv.Resize(frame.Image, &small, image.Pt(a.width, height), 0, 0, gocv.InterpolationArea); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to resize frame: %w", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(small, &gray, gocv.ColorBGRToGray); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}

	sig := gocv.NewMat()
	if err := gocv.GaussianBlur(gray, &sig, image.Pt(blurKernelSize, blurKernelSize), 0, 0, gocv.BorderDefault); err != nil {
		sig.Close()
		return gocv.Mat{}, fmt.Errorf("failed to blur frame: %w", err)
	}
	return sig, nil
}

// ChangedArea counts pixels whose absolute difference exceeds the pixel threshold
func (a *GoCVAnalyzer) ChangedArea(reference, current gocv.Mat) int {
	if reference.Empty() || current.Empty() {
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(reference, current, &diff); err != nil {
		return 0
	}
	gocv.Threshold(diff, &diff, pixelThreshold, 255, gocv.ThresholdBinary)
	return gocv.CountNonZero(diff)
}

func (a *GoCVAnalyzer) Release(sig gocv.Mat) {
	sig.Close()
}
