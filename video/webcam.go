package video

import (
	"fmt"
	"strconv"
	"time"

	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/resolution"
	"gocv.io/x/gocv"
)

// WebcamSource reads frames from a capture device
type WebcamSource struct {
	webcam *gocv.VideoCapture
	res    resolution.Resolution
	logger common.Logger
	now    func() time.Time
}

// OpenWebcam opens device ("0", "/dev/video0" or a stream URL) and requests the given resolution.
// The negotiated resolution may differ; Resolution reports what the device accepted.
func OpenWebcam(device string, requested resolution.Resolution, logger common.Logger) (*WebcamSource, error) {
	if logger == nil {
		logger = common.NopLogger
	}

	var target any = device
	if device == "" {
		target = 0
	} else if id, err := strconv.Atoi(device); err == nil {
		target = id
	}

	webcam, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %q: %w", device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("webcam %q could not be opened", device)
	}

	if !requested.IsEmpty() {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(requested.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(requested.Height))
	}

	actual := resolution.Resolution{
		Width:  int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}
	if actual.IsEmpty() {
		actual = requested
	}

	logger.Info("Webcam opened", "device", device, "requested", requested.String(), "actual", actual.String())

	return &WebcamSource{
		webcam: webcam,
		res:    actual,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Resolution returns the frame size negotiated with the device
func (s *WebcamSource) Resolution() resolution.Resolution {
	return s.res
}

// ReadFrame reads the next frame. A failed or empty read returns ok=false.
func (s *WebcamSource) ReadFrame() (*Frame, bool) {
	img := gocv.NewMat()
	if ok := s.webcam.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, false
	}
	return &Frame{Image: img, Timestamp: s.now()}, true
}

func (s *WebcamSource) Close() error {
	s.logger.Info("Closing webcam")
	return s.webcam.Close()
}
