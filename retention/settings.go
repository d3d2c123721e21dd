package retention

import (
	"time"

	"github.com/yeti47/mocap/config"
)

var DefaultRetentionSettings = RetentionSettings{
	AgeLimit: 7 * 24 * time.Hour,
	Interval: time.Hour,
}

type RetentionSettings struct {
	Root     string        // remote directory a pass starts from
	AgeLimit time.Duration // files strictly older than this are deleted
	Interval time.Duration // time between scheduled passes, 0 disables the scheduler
	DryRun   bool
}

// RetentionSettingsProvider implements SettingsProvider for RetentionSettings
type RetentionSettingsProvider struct {
	configProvider config.SettingsProvider[*config.Config]
}

// NewRetentionSettingsProvider creates a new RetentionSettingsProvider
func NewRetentionSettingsProvider(configProvider config.SettingsProvider[*config.Config]) *RetentionSettingsProvider {
	return &RetentionSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings maps the current configuration. Edits to the config file apply from the next pass
// when the config provider reloads it.
func (p *RetentionSettingsProvider) GetSettings() RetentionSettings {
	cfg := p.configProvider.GetSettings()

	settings := DefaultRetentionSettings
	settings.Root = cfg.RetentionStart()
	if age := cfg.RetentionAgeLimit(); age > 0 {
		settings.AgeLimit = age
	}
	settings.Interval = cfg.RetentionEvery()
	return settings
}
