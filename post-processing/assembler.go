package postprocessing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
	motiondetection "github.com/yeti47/mocap/motion-detection"
)

// FileTimestampLayout is the assembly timestamp layout used in clip file names
const FileTimestampLayout = "2006.01.02.15.04.05"

// FrameEncoder writes an ordered frame set to a single media file
type FrameEncoder[F any] interface {
	Encode(path string, frames []F) error
	// FileExtension is the extension of files Encode writes, including the dot.
	FileExtension() string
}

// ClipAssembler turns a motion clip into a file on local storage
type ClipAssembler[F any] interface {
	Assemble(clip *motiondetection.Clip[F]) (*VideoClip, error)
}

// Assembler encodes clips to output.<timestamp>.<ext> files and optionally transcodes them.
// The clip's frames are released once assembly finishes, whether or not it succeeded.
type Assembler[F any] struct {
	encoder          FrameEncoder[F]
	transcoder       Transcoder
	settingsProvider config.SettingsProvider[PostProcessingSettings]
	release          motiondetection.FrameReleaser[F]
	logger           common.Logger
	now              func() time.Time
	mu               sync.Mutex
}

// NewAssembler creates an Assembler. transcoder and release may be nil.
func NewAssembler[F any](
	encoder FrameEncoder[F],
	transcoder Transcoder,
	provider config.SettingsProvider[PostProcessingSettings],
	release motiondetection.FrameReleaser[F],
	logger common.Logger,
) *Assembler[F] {
	if logger == nil {
		logger = common.NopLogger
	}
	if release == nil {
		release = func(F) {}
	}
	if provider == nil {
		provider = config.NewStaticSettingsProvider(DefaultPostProcessingSettings)
	}
	return &Assembler[F]{
		encoder:          encoder,
		transcoder:       transcoder,
		settingsProvider: provider,
		release:          release,
		logger:           logger,
		now:              time.Now,
	}
}

func (a *Assembler[F]) Assemble(clip *motiondetection.Clip[F]) (*VideoClip, error) {
	defer a.releaseFrames(clip)

	if clip == nil || len(clip.Frames) == 0 {
		return nil, fmt.Errorf("clip has no frames")
	}

	settings := a.settingsProvider.GetSettings()

	if err := os.MkdirAll(settings.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := a.now()
	transcode := a.transcoder != nil && settings.TranscodeCodec != ""

	ext := a.encoder.FileExtension()
	if transcode {
		ext = common.FormatToFileExtension(settings.OutputFormat)
	}

	// name reservation and creation must not interleave between concurrent assemblies
	a.mu.Lock()
	outputPath, err := reservePath(settings.OutputDir, "output."+timestamp.Format(FileTimestampLayout), ext)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	a.logger.Info("Assembling clip", "clipID", clip.ID, "frames", len(clip.Frames), "path", outputPath)

	var duration time.Duration
	if transcode {
		outputPath, duration, err = a.encodeAndTranscode(clip, outputPath, settings)
	} else {
		err = a.encoder.Encode(outputPath, clip.Frames)
	}
	if err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to encode clip %s: %w", clip.ID, err)
	}

	if duration <= 0 && settings.FrameRate > 0 {
		duration = time.Duration(float64(len(clip.Frames)) / settings.FrameRate * float64(time.Second))
	}

	relativePath, err := filepath.Rel(settings.LocalRoot, outputPath)
	if err != nil {
		relativePath = filepath.Base(outputPath)
	}

	videoClip := &VideoClip{
		ID:           clip.ID,
		Path:         outputPath,
		RelativePath: filepath.ToSlash(relativePath),
		Format:       filepath.Ext(outputPath),
		Frames:       len(clip.Frames),
		Forced:       clip.Forced,
		Timestamp:    timestamp,
		Duration:     duration,
	}

	a.logger.Info("Clip assembled", "clipID", clip.ID, "path", videoClip.Path, "duration", videoClip.Duration)
	return videoClip, nil
}

// encodeAndTranscode writes the raw encoding to a hidden temp file next to outputPath and
// transcodes it. If transcoding fails the raw file is kept under the encoder's extension.
func (a *Assembler[F]) encodeAndTranscode(clip *motiondetection.Clip[F], outputPath string, settings PostProcessingSettings) (string, time.Duration, error) {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	stem := base[:len(base)-len(filepath.Ext(base))]
	rawPath := filepath.Join(dir, "."+stem+".raw"+a.encoder.FileExtension())

	if err := a.encoder.Encode(rawPath, clip.Frames); err != nil {
		os.Remove(rawPath)
		return outputPath, 0, err
	}

	duration, err := a.transcoder.Transcode(rawPath, outputPath, settings)
	if err == nil {
		if rmErr := os.Remove(rawPath); rmErr != nil {
			a.logger.Warn("Failed to remove raw clip", "path", rawPath, "error", rmErr)
		}
		return outputPath, duration, nil
	}

	a.logger.Warn("Transcoding failed, keeping raw encoding", "clipID", clip.ID, "error", err)
	os.Remove(outputPath)

	a.mu.Lock()
	fallbackPath, reserveErr := reservePath(dir, stem, a.encoder.FileExtension())
	a.mu.Unlock()
	if reserveErr != nil {
		os.Remove(rawPath)
		return outputPath, 0, reserveErr
	}
	if err := os.Rename(rawPath, fallbackPath); err != nil {
		os.Remove(rawPath)
		os.Remove(fallbackPath)
		return outputPath, 0, fmt.Errorf("failed to keep raw clip: %w", err)
	}
	return fallbackPath, 0, nil
}

func (a *Assembler[F]) releaseFrames(clip *motiondetection.Clip[F]) {
	if clip == nil {
		return
	}
	for _, f := range clip.Frames {
		a.release(f)
	}
	clip.Frames = nil
}

// reservePath creates an empty file at dir/stem+ext, or dir/stem.N+ext when that name is taken,
// and returns its path.
func reservePath(dir, stem, ext string) (string, error) {
	for n := 0; n < 1000; n++ {
		name := stem + ext
		if n > 0 {
			name = stem + "." + strconv.Itoa(n) + ext
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no free file name for %s%s in %s", stem, ext, dir)
}
