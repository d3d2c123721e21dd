package pipeline

import (
	"time"

	"github.com/yeti47/mocap/config"
)

var DefaultPipelineSettings = PipelineSettings{
	KeepLocalClips:       true,
	AssemblyDrainTimeout: 30 * time.Second,
}

type PipelineSettings struct {
	KeepLocalClips       bool          // keep clip files after they were uploaded
	AssemblyDrainTimeout time.Duration // time the assembler may spend on queued clips at shutdown
}

// PipelineSettingsProvider implements SettingsProvider for PipelineSettings
type PipelineSettingsProvider struct {
	configProvider config.SettingsProvider[*config.Config]
}

// NewPipelineSettingsProvider creates a new PipelineSettingsProvider
func NewPipelineSettingsProvider(configProvider config.SettingsProvider[*config.Config]) *PipelineSettingsProvider {
	return &PipelineSettingsProvider{
		configProvider: configProvider,
	}
}

func (p *PipelineSettingsProvider) GetSettings() PipelineSettings {
	cfg := p.configProvider.GetSettings()

	settings := DefaultPipelineSettings
	settings.KeepLocalClips = cfg.KeepLocalClips
	if timeout := cfg.DrainTimeout(); timeout > 0 {
		settings.AssemblyDrainTimeout = timeout
	}
	return settings
}
