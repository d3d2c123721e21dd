package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yeti47/mocap/resolution"
)

const (
	DefaultConfigFile = "config.json"

	// DefaultRetentionAge is the primary pipeline's age limit; the secondary variant runs with "2d".
	DefaultRetentionAge = "7d"
)

// Config holds the application configuration
type Config struct {
	CameraDevice   string  `json:"camera_device"`
	Resolution     string  `json:"resolution"`       // requested capture size, e.g. "960x720"
	MinAreaPercent float64 `json:"min_area_percent"` // minimum motion area as a percentage of the frame
	PreFrames      int     `json:"pre_frames"`       // frames kept before motion is confirmed
	Rotation       int     `json:"rotation"`         // output rotation angle in degrees
	FrameRate      float64 `json:"frame_rate"`
	CaptureCodec   string  `json:"capture_codec"` // fourcc used by the clip writer
	OutputFormat   string  `json:"output_format"`
	TranscodeCodec string  `json:"transcode_codec"` // ffmpeg encoder; empty keeps the written file as is
	VideoBitRate   string  `json:"video_bitrate"`
	ReadRetryMs    int     `json:"read_retry_millis"`

	LocalRoot      string `json:"local_root"` // uploads mirror paths relative to this directory
	OutputDir      string `json:"output_dir"` // relative to LocalRoot
	KeepLocalClips bool   `json:"keep_local_clips"`

	RemoteDir            string `json:"remote_dir"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds"`
	CredentialsFile      string `json:"credentials_file"`
	UploadMaxRetries     int    `json:"upload_max_retries"`
	DrainTimeoutSeconds  int    `json:"drain_timeout_seconds"`

	RetentionAge      string `json:"retention_age"`      // e.g. "7d", "48h"
	RetentionRoot     string `json:"retention_root"`     // empty means the remote working directory
	RetentionInterval string `json:"retention_interval"` // "0" disables scheduled passes

	LedgerPath    string `json:"ledger_path"`
	StatusPort    int    `json:"status_port"`
	LogLevel      string `json:"log_level"`
	LogPath       string `json:"log_path"`
	LogRetainDays int    `json:"log_retain_days"` // daily log files kept, 0 keeps all
	LockPath      string `json:"lock_path"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		CameraDevice:         "0",
		Resolution:           "960x720",
		MinAreaPercent:       0.2,
		PreFrames:            80,
		Rotation:             0,
		FrameRate:            30.0,
		CaptureCodec:         "mp4v",
		OutputFormat:         "mp4",
		ReadRetryMs:          1000,
		LocalRoot:            ".",
		OutputDir:            "out",
		KeepLocalClips:       true,
		RemoteDir:            "/",
		RemoteTimeoutSeconds: 30,
		CredentialsFile:      ".creds",
		UploadMaxRetries:     3,
		DrainTimeoutSeconds:  30,
		RetentionAge:         DefaultRetentionAge,
		RetentionInterval:    "1h",
		LedgerPath:           "mocap.db",
		LogLevel:             "info",
		LogPath:              "logs",
		LogRetainDays:        14,
		LockPath:             filepath.Join(os.TempDir(), "mocap-retention.lock"),
	}
}

// LoadConfig loads configuration from a JSON file, creating it with defaults when it does not exist.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultConfigFile
	}

	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := config.SaveConfig(filename); err != nil {
				return nil, fmt.Errorf("failed to create default config file: %w", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := resolution.Parse(c.Resolution); err != nil {
		return fmt.Errorf("invalid resolution: %w", err)
	}
	if c.MinAreaPercent <= 0 || c.MinAreaPercent > 100 {
		return fmt.Errorf("min_area_percent must be in (0, 100], got %v", c.MinAreaPercent)
	}
	if c.PreFrames < 0 {
		return fmt.Errorf("pre_frames must not be negative, got %d", c.PreFrames)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %v", c.FrameRate)
	}
	if c.UploadMaxRetries < 0 {
		return fmt.Errorf("upload_max_retries must not be negative, got %d", c.UploadMaxRetries)
	}
	if _, err := ParseAge(c.RetentionAge); err != nil {
		return fmt.Errorf("invalid retention_age: %w", err)
	}
	if _, err := ParseAge(c.RetentionInterval); err != nil {
		return fmt.Errorf("invalid retention_interval: %w", err)
	}
	if c.LogRetainDays < 0 {
		return fmt.Errorf("log_retain_days must not be negative, got %d", c.LogRetainDays)
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		return fmt.Errorf("invalid status port: %d", c.StatusPort)
	}
	return nil
}

// CaptureResolution returns the parsed capture resolution
func (c *Config) CaptureResolution() resolution.Resolution {
	res, err := resolution.Parse(c.Resolution)
	if err != nil {
		return resolution.Resolution{Width: 960, Height: 720}
	}
	return res
}

// RetentionAgeLimit returns the parsed retention age, falling back to seven days.
func (c *Config) RetentionAgeLimit() time.Duration {
	age, err := ParseAge(c.RetentionAge)
	if err != nil || age <= 0 {
		return 7 * 24 * time.Hour
	}
	return age
}

// RetentionEvery returns the scheduled pass interval; zero disables the scheduler.
func (c *Config) RetentionEvery() time.Duration {
	interval, err := ParseAge(c.RetentionInterval)
	if err != nil {
		return 0
	}
	return interval
}

// RetentionStart returns the remote directory a retention pass starts from. Sessions already
// work inside RemoteDir, so an empty root means that directory.
func (c *Config) RetentionStart() string {
	return c.RetentionRoot
}

// OutputDirectory returns the local directory clips are written to
func (c *Config) OutputDirectory() string {
	return filepath.Join(c.LocalRoot, c.OutputDir)
}

func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

func (c *Config) ReadRetryDelay() time.Duration {
	return time.Duration(c.ReadRetryMs) * time.Millisecond
}

// ConfigOverrides holds potential override values for configuration
type ConfigOverrides struct {
	CameraDevice   *string
	Resolution     *string
	MinAreaPercent *float64
	PreFrames      *int
	Rotation       *int
	RemoteDir      *string
	RetentionAge   *string
	LogLevel       *string
}

// Override applies non-empty override values on top of the loaded configuration
func (c *Config) Override(overrides ConfigOverrides) {
	if overrides.CameraDevice != nil && *overrides.CameraDevice != "" {
		c.CameraDevice = *overrides.CameraDevice
	}
	if overrides.Resolution != nil && *overrides.Resolution != "" {
		c.Resolution = *overrides.Resolution
	}
	if overrides.MinAreaPercent != nil && *overrides.MinAreaPercent > 0 {
		c.MinAreaPercent = *overrides.MinAreaPercent
	}
	if overrides.PreFrames != nil && *overrides.PreFrames > 0 {
		c.PreFrames = *overrides.PreFrames
	}
	// zero is a meaningful rotation, so any explicitly passed value wins
	if overrides.Rotation != nil {
		c.Rotation = *overrides.Rotation
	}
	if overrides.RemoteDir != nil && *overrides.RemoteDir != "" {
		c.RemoteDir = *overrides.RemoteDir
	}
	if overrides.RetentionAge != nil && *overrides.RetentionAge != "" {
		c.RetentionAge = *overrides.RetentionAge
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		c.LogLevel = *overrides.LogLevel
	}
}
