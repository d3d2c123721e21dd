package video

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/yeti47/mocap/common"
	"gocv.io/x/gocv"
)

var overlayColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// GoCVClipEncoder writes frames to a container file, rotating them and burning in their capture time.
type GoCVClipEncoder struct {
	codec     string
	frameRate float64
	rotation  float64
	logger    common.Logger
}

func NewGoCVClipEncoder(codec string, frameRate float64, rotation int, logger common.Logger) *GoCVClipEncoder {
	if logger == nil {
		logger = common.NopLogger
	}
	return &GoCVClipEncoder{
		codec:     codec,
		frameRate: frameRate,
		rotation:  float64(rotation),
		logger:    logger,
	}
}

// FileExtension returns the container extension matching the writer codec
func (e *GoCVClipEncoder) FileExtension() string {
	return common.CodecToFileExtension(e.codec)
}

// Encode writes frames in order to path. Frames are not released.
func (e *GoCVClipEncoder) Encode(path string, frames []*Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}

	first := frames[0].Image
	width, height := RotatedSize(first.Cols(), first.Rows(), e.rotation)

	writer, err := gocv.VideoWriterFile(path, e.codec, e.frameRate, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}
	defer func() {
		e.logger.Debug("Closing video writer", "path", path)
		writer.Close()
	}()

	out := gocv.NewMat()
	defer out.Close()

	written := 0
	for i, frame := range frames {
		if err := e.render(frame, &out); err != nil {
			e.logger.Warn("Failed to render frame, skipping", "index", i, "error", err)
			continue
		}
		if err := writer.Write(out); err != nil {
			e.logger.Warn("Failed to write frame", "index", i, "error", err)
			continue
		}
		written++
	}

	if written == 0 {
		return fmt.Errorf("no frames were written to %s", path)
	}

	e.logger.Debug("Encoded clip", "path", path, "frames", written, "size", fmt.Sprintf("%dx%d", width, height))
	return nil
}

// render rotates the frame into dst and draws the timestamp at the bottom left of the result.
func (e *GoCVClipEncoder) render(frame *Frame, dst *gocv.Mat) error {
	var err error
	if math.Mod(e.rotation, 360) == 0 {
		err = frame.Image.CopyTo(dst)
	} else {
		err = rotate(frame.Image, dst, e.rotation)
	}
	if err != nil {
		return err
	}

	org := image.Pt(10, dst.Rows()-10)
	return gocv.PutText(dst, FormatTimestamp(frame.Timestamp), org, gocv.FontHersheyPlain, 1.0, overlayColor, 1)
}

// rotate turns src by angle degrees about its centre, growing the canvas so nothing is clipped.
func rotate(src gocv.Mat, dst *gocv.Mat, angle float64) error {
	w, h := src.Cols(), src.Rows()
	cx, cy := w/2, h/2

	m := gocv.GetRotationMatrix2D(image.Pt(cx, cy), angle, 1.0)
	defer m.Close()

	nw, nh := RotatedSize(w, h, angle)
	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+float64(nw)/2-float64(cx))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+float64(nh)/2-float64(cy))

	return gocv.WarpAffine(src, dst, m, image.Pt(nw, nh))
}

// RotatedSize returns the bounding size of a w x h image rotated by angle degrees
func RotatedSize(w, h int, angle float64) (int, int) {
	rad := angle * math.Pi / 180
	cos := math.Abs(math.Cos(rad))
	sin := math.Abs(math.Sin(rad))
	nw := int(float64(h)*sin + float64(w)*cos)
	nh := int(float64(h)*cos + float64(w)*sin)
	return nw, nh
}
