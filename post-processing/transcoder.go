package postprocessing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg/transcoder"
	"github.com/yeti47/mocap/common"
)

// Transcoder re-encodes a written clip into the configured output format
type Transcoder interface {
	// Transcode converts inputPath into outputPath and returns the probed duration, zero if unknown.
	Transcode(inputPath, outputPath string, settings PostProcessingSettings) (time.Duration, error)
}

type FfmpegTranscoder struct {
	codecProvider common.CodecProvider
	logger        common.Logger
}

// NewFfmpegTranscoder creates a transcoder. codecProvider may be nil to use the requested codec as is.
func NewFfmpegTranscoder(codecProvider common.CodecProvider, logger common.Logger) *FfmpegTranscoder {
	if logger == nil {
		logger = common.NopLogger
	}
	return &FfmpegTranscoder{
		codecProvider: codecProvider,
		logger:        logger,
	}
}

func (t *FfmpegTranscoder) Transcode(inputPath, outputPath string, settings PostProcessingSettings) (time.Duration, error) {
	codec := settings.TranscodeCodec
	if t.codecProvider != nil {
		fallback, err := t.codecProvider.GetFallbackCodec(codec)
		if err != nil {
			return 0, fmt.Errorf("no usable encoder for %s: %w", codec, err)
		}
		if fallback != codec {
			t.logger.Warn("Requested codec unavailable, using fallback", "requested", codec, "fallback", fallback)
		}
		codec = fallback
	}

	trans := new(transcoder.Transcoder)

	if err := trans.Initialize(inputPath, outputPath); err != nil {
		return 0, fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	// video only, the capture has no audio
	trans.MediaFile().SetVideoCodec(codec)
	trans.MediaFile().SetOutputFormat(strings.TrimPrefix(settings.OutputFormat, "."))
	trans.MediaFile().SetSkipAudio(true)
	if settings.VideoBitRate != "" {
		trans.MediaFile().SetVideoBitRate(settings.VideoBitRate)
	}

	done := trans.Run(false)

	// the input was probed during initialization, so no second ffprobe run is needed
	duration, err := parseDuration(trans.MediaFile().Metadata().Format.Duration)
	if err != nil {
		duration = 0
	}

	if err := <-done; err != nil {
		return 0, fmt.Errorf("failed to transcode clip: %w", err)
	}

	t.logger.Debug("Transcoded clip", "input", inputPath, "output", outputPath, "codec", codec)
	return duration, nil
}

func parseDuration(durationStr string) (time.Duration, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration in video metadata")
	}

	durationSeconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", durationStr, err)
	}

	if durationSeconds <= 0 {
		return 0, fmt.Errorf("invalid or zero duration: %f seconds", durationSeconds)
	}

	return time.Duration(durationSeconds * float64(time.Second)), nil
}
