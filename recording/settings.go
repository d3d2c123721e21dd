package recording

import (
	"time"

	"github.com/yeti47/mocap/config"
)

var DefaultRecordingSettings = RecordingSettings{
	ReadRetryDelay: time.Second,
}

type RecordingSettings struct {
	ReadRetryDelay time.Duration // wait after a failed frame read
}

// RecordingSettingsProvider implements SettingsProvider for RecordingSettings
type RecordingSettingsProvider struct {
	configProvider config.SettingsProvider[*config.Config]
}

// NewRecordingSettingsProvider creates a new RecordingSettingsProvider
func NewRecordingSettingsProvider(configProvider config.SettingsProvider[*config.Config]) *RecordingSettingsProvider {
	return &RecordingSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current recording settings mapped from the configuration
func (p *RecordingSettingsProvider) GetSettings() RecordingSettings {
	cfg := p.configProvider.GetSettings()

	settings := DefaultRecordingSettings
	if delay := cfg.ReadRetryDelay(); delay > 0 {
		settings.ReadRetryDelay = delay
	}
	return settings
}
