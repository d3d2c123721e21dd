package motiondetection

import (
	"github.com/yeti47/mocap/config"
	"github.com/yeti47/mocap/resolution"
)

// SignatureWidth is the width motion signatures are downscaled to before comparison.
const SignatureWidth = 300

var DefaultMotionDetectionSettings = MotionDetectionSettings{
	PreFrames:        80,  // frames kept before motion is confirmed
	AreaThreshold:    135, // 0.2% of 960x720 at signature scale
	SustainThreshold: 0,
	HistorySize:      120,
	RecentWindow:     5,
	MaxMotionFrames:  300,
}

type MotionDetectionSettings struct {
	PreFrames        int     // capacity of the pre-roll buffer
	AreaThreshold    float64 // changed pixels needed to start an episode
	SustainThreshold float64 // changed pixels needed to count as motion while recording
	HistorySize      int     // hysteresis window length
	RecentWindow     int     // accepted signatures kept while recording
	MaxMotionFrames  int     // hard cap of in-motion frames per clip
}

// withDefaults replaces non-positive capacities with their defaults.
// PreFrames and thresholds may legitimately be zero.
func (s MotionDetectionSettings) withDefaults() MotionDetectionSettings {
	if s.PreFrames < 0 {
		s.PreFrames = 0
	}
	if s.HistorySize <= 0 {
		s.HistorySize = DefaultMotionDetectionSettings.HistorySize
	}
	if s.RecentWindow <= 0 {
		s.RecentWindow = DefaultMotionDetectionSettings.RecentWindow
	}
	if s.MaxMotionFrames <= 0 {
		s.MaxMotionFrames = DefaultMotionDetectionSettings.MaxMotionFrames
	}
	return s
}

// AreaThreshold converts a minimum motion area, given as a percentage of the capture frame,
// into a pixel count at signature resolution.
func AreaThreshold(res resolution.Resolution, minAreaPercent float64, signatureWidth int) float64 {
	if res.IsEmpty() || signatureWidth <= 0 {
		return 0
	}
	scale := float64(signatureWidth) / float64(res.Width)
	smallArea := float64(res.Area()) * scale * scale
	return minAreaPercent / 100 * smallArea
}

// MotionDetectionSettingsProvider implements SettingsProvider for MotionDetectionSettings
type MotionDetectionSettingsProvider struct {
	configProvider config.SettingsProvider[*config.Config]
}

// NewMotionDetectionSettingsProvider creates a new MotionDetectionSettingsProvider
func NewMotionDetectionSettingsProvider(configProvider config.SettingsProvider[*config.Config]) *MotionDetectionSettingsProvider {
	return &MotionDetectionSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current motion detection settings mapped from the configuration
func (p *MotionDetectionSettingsProvider) GetSettings() MotionDetectionSettings {
	cfg := p.configProvider.GetSettings()

	settings := DefaultMotionDetectionSettings
	settings.PreFrames = cfg.PreFrames
	settings.AreaThreshold = AreaThreshold(cfg.CaptureResolution(), cfg.MinAreaPercent, SignatureWidth)
	return settings
}
