package recording

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
	motiondetection "github.com/yeti47/mocap/motion-detection"
)

// FrameSource yields frames on demand. ok=false is a transient failure, not end of stream.
type FrameSource[F any] interface {
	ReadFrame() (frame F, ok bool)
	Close() error
}

// Stats is a snapshot of the capture loop counters
type Stats struct {
	FramesRead   uint64
	ReadFailures uint64
	ClipsEmitted uint64
	Recording    bool
}

// Recorder feeds frames from a source into a motion detector and queues completed clips.
type Recorder[F any] struct {
	source           FrameSource[F]
	detector         motiondetection.MotionDetector[F]
	clips            *common.Queue[*motiondetection.Clip[F]]
	settingsProvider config.SettingsProvider[RecordingSettings]
	logger           common.Logger

	framesRead   atomic.Uint64
	readFailures atomic.Uint64
	clipsEmitted atomic.Uint64

	isRecording bool
	mu          sync.RWMutex
}

func NewRecorder[F any](
	source FrameSource[F],
	detector motiondetection.MotionDetector[F],
	clips *common.Queue[*motiondetection.Clip[F]],
	provider config.SettingsProvider[RecordingSettings],
	logger common.Logger,
) *Recorder[F] {
	if logger == nil {
		logger = common.NopLogger
	}
	if provider == nil {
		provider = config.NewStaticSettingsProvider(DefaultRecordingSettings)
	}
	return &Recorder[F]{
		source:           source,
		detector:         detector,
		clips:            clips,
		settingsProvider: provider,
		logger:           logger,
	}
}

func (r *Recorder[F]) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRecording
}

// Run reads frames until ctx is done. It returns false if the recorder was already running.
// On exit an unfinished motion episode is flushed into the clip queue and the detector lets go of
// its pre-roll and baseline.
func (r *Recorder[F]) Run(ctx context.Context) bool {
	r.mu.Lock()
	if r.isRecording {
		r.mu.Unlock()
		return false
	}
	r.isRecording = true
	r.mu.Unlock()

	defer func() {
		if clip := r.detector.Flush(); clip != nil {
			r.logger.Info("Flushing unfinished motion episode", "clipID", clip.ID, "frames", len(clip.Frames))
			r.emit(clip)
		}
		r.detector.Reset()
		r.mu.Lock()
		r.isRecording = false
		r.mu.Unlock()
	}()

	r.logger.Info("Capture loop started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Capture loop stopped")
			return true
		default:
		}

		frame, ok := r.source.ReadFrame()
		if !ok {
			failures := r.readFailures.Add(1)
			delay := r.settingsProvider.GetSettings().ReadRetryDelay
			r.logger.Warn("Failed to read frame, retrying", "failures", failures, "retryIn", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				r.logger.Info("Capture loop stopped")
				return true
			case <-timer.C:
			}
			continue
		}

		r.framesRead.Add(1)
		if clip := r.detector.Observe(frame); clip != nil {
			r.emit(clip)
		}
	}
}

func (r *Recorder[F]) emit(clip *motiondetection.Clip[F]) {
	r.clips.Push(clip)
	r.clipsEmitted.Add(1)
}

// Stats returns the current counters
func (r *Recorder[F]) Stats() Stats {
	return Stats{
		FramesRead:   r.framesRead.Load(),
		ReadFailures: r.readFailures.Load(),
		ClipsEmitted: r.clipsEmitted.Load(),
		Recording:    r.IsRecording(),
	}
}
