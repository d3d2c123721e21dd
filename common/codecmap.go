package common

import (
	"fmt"
	"maps"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// CodecFallbackMap defines fallback chains for transcode codecs
var CodecFallbackMap = map[string][]string{
	// H.264 encoders in preference order
	"libx264":      {"libx264", "libopenh264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},
	"libopenh264":  {"libopenh264", "libx264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},
	"h264_vaapi":   {"h264_vaapi", "libx264", "libopenh264", "h264_qsv", "h264_v4l2m2m"},
	"h264_qsv":     {"h264_qsv", "libx264", "libopenh264", "h264_vaapi", "h264_v4l2m2m"},
	"h264_v4l2m2m": {"h264_v4l2m2m", "libx264", "libopenh264", "h264_vaapi", "h264_qsv"},

	// H.265 falls back to H.264 encoders
	"libx265": {"libx265", "libx264", "libopenh264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},

	"mpeg4": {"mpeg4", "libx264", "libopenh264"},
}

// encoderLinePattern matches lines like
// " V....D libopenh264          OpenH264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)"
var encoderLinePattern = regexp.MustCompile(`^ ([VA][.SFXBD]{5})\s+([a-zA-Z0-9_-]+)\s+`)

// CodecProvider resolves which encoder to hand to ffmpeg
type CodecProvider interface {
	IsCodecAvailable(codec string) bool
	GetFallbackCodec(requestedCodec string) (string, error)
	GetAvailableCodecs() map[string]bool
}

// EncoderLister returns the raw output of `ffmpeg -encoders`
type EncoderLister func() ([]byte, error)

// FFmpegEncoderLister queries the ffmpeg binary on PATH
func FFmpegEncoderLister() ([]byte, error) {
	return exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
}

// FFmpegCodecProvider implements CodecProvider by parsing the ffmpeg encoder list once.
type FFmpegCodecProvider struct {
	logger          Logger
	lister          EncoderLister
	once            sync.Once
	availableCodecs map[string]bool
}

// NewFFmpegCodecProvider creates a provider; a nil lister uses the ffmpeg binary.
func NewFFmpegCodecProvider(logger Logger, lister EncoderLister) *FFmpegCodecProvider {
	if logger == nil {
		logger = NopLogger
	}
	if lister == nil {
		lister = FFmpegEncoderLister
	}
	return &FFmpegCodecProvider{
		logger:          logger,
		lister:          lister,
		availableCodecs: make(map[string]bool),
	}
}

// IsCodecAvailable reports whether ffmpeg lists the encoder
func (c *FFmpegCodecProvider) IsCodecAvailable(codec string) bool {
	c.once.Do(c.loadAvailableCodecs)
	return c.availableCodecs[codec]
}

// GetAvailableCodecs returns a copy of all available codecs
func (c *FFmpegCodecProvider) GetAvailableCodecs() map[string]bool {
	c.once.Do(c.loadAvailableCodecs)
	result := make(map[string]bool, len(c.availableCodecs))
	maps.Copy(result, c.availableCodecs)
	return result
}

func (c *FFmpegCodecProvider) loadAvailableCodecs() {
	output, err := c.lister()
	if err != nil {
		c.logger.Warn("failed to query ffmpeg encoders", "error", err)
		return
	}

	for _, line := range strings.Split(string(output), "\n") {
		// header legend lines look like " V..... = Video"
		if strings.Contains(line, " = ") {
			continue
		}

		matches := encoderLinePattern.FindStringSubmatch(line)
		if len(matches) >= 3 && matches[2] != "" {
			c.availableCodecs[matches[2]] = true
		}
	}

	c.logger.Debug("loaded ffmpeg encoders", "count", len(c.availableCodecs))
}

// GetFallbackCodec finds the first available codec from the fallback chain
func (c *FFmpegCodecProvider) GetFallbackCodec(requestedCodec string) (string, error) {
	if c.IsCodecAvailable(requestedCodec) {
		return requestedCodec, nil
	}

	fallbackChain, exists := CodecFallbackMap[requestedCodec]
	if !exists {
		return "", fmt.Errorf("codec '%s' is not available and no fallback is defined", requestedCodec)
	}

	for _, codec := range fallbackChain {
		if c.IsCodecAvailable(codec) {
			c.logger.Info("using fallback codec", "requested", requestedCodec, "codec", codec)
			return codec, nil
		}
	}

	return "", fmt.Errorf("no suitable codec available from fallback chain: %v", fallbackChain)
}
