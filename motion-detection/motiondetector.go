package motiondetection

import (
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/mocap/common"
)

// State of the motion detector
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Analyzer derives motion signatures from frames and compares them.
type Analyzer[F any, S any] interface {
	// Signature computes the comparison representation of a frame.
	Signature(frame F) (S, error)
	// ChangedArea returns the number of pixels that differ noticeably between two signatures.
	ChangedArea(reference, current S) int
	// Release frees resources held by a signature.
	Release(sig S)
}

// FrameReleaser frees a frame the detector drops without handing it off in a clip.
type FrameReleaser[F any] func(frame F)

// MotionDetector turns a stream of frames into clips of motion episodes.
type MotionDetector[F any] interface {
	// Observe feeds one frame and returns a clip when an episode completes.
	Observe(frame F) *Clip[F]
	// Flush ends an active episode early and returns what was recorded so far.
	Flush() *Clip[F]
	// Reset releases every frame and signature still held.
	Reset()
	State() State
}

// Detector is a two-state motion detector. While idle it compares each frame against a
// baseline; once the changed area reaches the threshold it records until the hysteresis
// window holds no motion or the in-motion frame cap is hit.
//
// Detector is not safe for concurrent use; it is owned by the capture loop.
type Detector[F any, S any] struct {
	analyzer Analyzer[F, S]
	settings MotionDetectionSettings
	release  FrameReleaser[F]
	logger   common.Logger
	now      func() time.Time

	state       State
	hasBaseline bool
	baseline    S

	preRoll *Ring[F]
	history *Ring[bool]
	recent  *Ring[S]

	motionFrames []F
	preRollCount int
	startedAt    time.Time
}

// NewDetector creates a Detector. release may be nil when frames need no cleanup.
func NewDetector[F any, S any](analyzer Analyzer[F, S], settings MotionDetectionSettings, release FrameReleaser[F], logger common.Logger) *Detector[F, S] {
	if logger == nil {
		logger = common.NopLogger
	}
	if release == nil {
		release = func(F) {}
	}
	settings = settings.withDefaults()

	return &Detector[F, S]{
		analyzer: analyzer,
		settings: settings,
		release:  release,
		logger:   logger,
		now:      time.Now,
		preRoll:  NewRing[F](settings.PreFrames),
		history:  NewRing[bool](settings.HistorySize),
		recent:   NewRing[S](settings.RecentWindow),
	}
}

func (d *Detector[F, S]) State() State {
	return d.state
}

func (d *Detector[F, S]) Settings() MotionDetectionSettings {
	return d.settings
}

// PreRollLen returns the number of frames currently buffered ahead of motion
func (d *Detector[F, S]) PreRollLen() int {
	return d.preRoll.Len()
}

// HistoryLen returns the number of detection outcomes in the hysteresis window
func (d *Detector[F, S]) HistoryLen() int {
	return d.history.Len()
}

// Observe advances the state machine by one frame.
// Ownership of frame passes to the detector; it is either released or handed off in a clip.
func (d *Detector[F, S]) Observe(frame F) *Clip[F] {
	sig, err := d.analyzer.Signature(frame)
	if err != nil {
		d.logger.Warn("Failed to compute motion signature, dropping frame", "error", err)
		d.release(frame)
		return nil
	}

	if d.state == StateRecording {
		return d.observeRecording(frame, sig)
	}

	if !d.hasBaseline {
		d.baseline = sig
		d.hasBaseline = true
		d.pushPreRoll(frame)
		d.logger.Debug("Baseline established")
		return nil
	}

	area := d.analyzer.ChangedArea(d.baseline, sig)
	if float64(area) < d.settings.AreaThreshold {
		d.analyzer.Release(sig)
		d.pushPreRoll(frame)
		return nil
	}

	d.startEpisode(frame, sig, area)
	if len(d.motionFrames)-d.preRollCount >= d.settings.MaxMotionFrames {
		return d.finishEpisode(true)
	}
	return nil
}

func (d *Detector[F, S]) startEpisode(frame F, sig S, area int) {
	d.logger.Info("Motion detected, recording started",
		"changedArea", area,
		"threshold", d.settings.AreaThreshold,
		"preRollFrames", d.preRoll.Len(),
	)

	d.state = StateRecording
	d.startedAt = d.now()

	preRoll := d.preRoll.Clear()
	d.preRollCount = len(preRoll)
	d.motionFrames = make([]F, 0, len(preRoll)+d.settings.MaxMotionFrames)
	d.motionFrames = append(d.motionFrames, preRoll...)
	d.motionFrames = append(d.motionFrames, frame)

	d.history.Clear()
	d.history.Push(true)

	// the baseline signature moves into the recent window and is released from there;
	// the trigger never becomes a reference
	d.clearRecent()
	d.pushRecent(d.baseline)
	d.hasBaseline = false
	var zero S
	d.baseline = zero
	d.analyzer.Release(sig)
}

func (d *Detector[F, S]) observeRecording(frame F, sig S) *Clip[F] {
	reference, _ := d.recent.Oldest()
	area := d.analyzer.ChangedArea(reference, sig)
	d.history.Push(float64(area) > d.settings.SustainThreshold)

	if d.history.CountFunc(isTrue) == 0 {
		d.analyzer.Release(sig)
		d.release(frame)
		return d.finishEpisode(false)
	}

	d.motionFrames = append(d.motionFrames, frame)
	d.pushRecent(sig)

	if len(d.motionFrames)-d.preRollCount >= d.settings.MaxMotionFrames {
		d.logger.Warn("In-motion frame cap reached, forcing clip", "cap", d.settings.MaxMotionFrames)
		return d.finishEpisode(true)
	}
	return nil
}

func (d *Detector[F, S]) finishEpisode(forced bool) *Clip[F] {
	clip := &Clip[F]{
		ID:        uuid.New(),
		StartedAt: d.startedAt,
		EndedAt:   d.now(),
		Frames:    d.motionFrames,
		PreRoll:   d.preRollCount,
		Forced:    forced,
	}

	d.logger.Info("Motion episode complete",
		"clipID", clip.ID,
		"frames", len(clip.Frames),
		"preRoll", clip.PreRoll,
		"forced", forced,
	)

	d.motionFrames = nil
	d.preRollCount = 0
	d.history.Clear()
	d.clearRecent()
	d.state = StateIdle

	return clip
}

// Flush ends an active episode and returns its clip, or nil when idle.
func (d *Detector[F, S]) Flush() *Clip[F] {
	if d.state != StateRecording {
		return nil
	}
	return d.finishEpisode(false)
}

// Reset drops every held frame and signature and waits for a new baseline.
func (d *Detector[F, S]) Reset() {
	for _, f := range d.preRoll.Clear() {
		d.release(f)
	}
	for _, f := range d.motionFrames {
		d.release(f)
	}
	d.motionFrames = nil
	d.preRollCount = 0
	d.history.Clear()
	d.clearRecent()
	if d.hasBaseline {
		d.analyzer.Release(d.baseline)
		var zero S
		d.baseline = zero
		d.hasBaseline = false
	}
	d.state = StateIdle
}

func (d *Detector[F, S]) pushPreRoll(frame F) {
	if evicted, ok := d.preRoll.Push(frame); ok {
		d.release(evicted)
	}
}

func (d *Detector[F, S]) pushRecent(sig S) {
	if evicted, ok := d.recent.Push(sig); ok {
		d.analyzer.Release(evicted)
	}
}

func (d *Detector[F, S]) clearRecent() {
	for _, s := range d.recent.Clear() {
		d.analyzer.Release(s)
	}
}

func isTrue(b bool) bool { return b }
