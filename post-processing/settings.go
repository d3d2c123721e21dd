package postprocessing

import (
	"github.com/yeti47/mocap/config"
)

var DefaultPostProcessingSettings = PostProcessingSettings{
	LocalRoot:    ".",
	OutputDir:    "out",
	OutputFormat: "mp4",
	FrameRate:    30.0,
}

type PostProcessingSettings struct {
	LocalRoot      string  // root the relative clip path is computed against
	OutputDir      string  // directory clips are written to
	OutputFormat   string  // container of transcoded clips (e.g. "mp4")
	TranscodeCodec string  // ffmpeg encoder; empty disables transcoding
	VideoBitRate   string  // bitrate for transcoding (e.g. "1000k")
	FrameRate      float64 // playback rate the clip is written at
}

// PostProcessingSettingsProvider implements SettingsProvider for PostProcessingSettings
type PostProcessingSettingsProvider struct {
	configProvider config.SettingsProvider[*config.Config]
}

// NewPostProcessingSettingsProvider creates a new PostProcessingSettingsProvider
func NewPostProcessingSettingsProvider(configProvider config.SettingsProvider[*config.Config]) *PostProcessingSettingsProvider {
	return &PostProcessingSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current post-processing settings mapped from the configuration
func (p *PostProcessingSettingsProvider) GetSettings() PostProcessingSettings {
	cfg := p.configProvider.GetSettings()

	return PostProcessingSettings{
		LocalRoot:      cfg.LocalRoot,
		OutputDir:      cfg.OutputDirectory(),
		OutputFormat:   cfg.OutputFormat,
		TranscodeCodec: cfg.TranscodeCodec,
		VideoBitRate:   cfg.VideoBitRate,
		FrameRate:      cfg.FrameRate,
	}
}
