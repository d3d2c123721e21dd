package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
	filemanagement "github.com/yeti47/mocap/file-management"
	motiondetection "github.com/yeti47/mocap/motion-detection"
	"github.com/yeti47/mocap/pipeline"
	postprocessing "github.com/yeti47/mocap/post-processing"
	"github.com/yeti47/mocap/recording"
	"github.com/yeti47/mocap/retention"
	"github.com/yeti47/mocap/status"
	"github.com/yeti47/mocap/uploading"
	"github.com/yeti47/mocap/video"
	"gocv.io/x/gocv"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var resolutionFlag, remoteDir, device string
	var minAreaPercent float64
	var preFrames, rotation int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture motion clips and ship them to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.overrides = config.ConfigOverrides{
				CameraDevice:   &device,
				Resolution:     &resolutionFlag,
				MinAreaPercent: &minAreaPercent,
				PreFrames:      &preFrames,
				RemoteDir:      &remoteDir,
			}
			if cmd.Flags().Changed("rotation") {
				ctx.overrides.Rotation = &rotation
			}
			return runCapture(cmd.Context(), ctx)
		},
	}

	cmd.Flags().StringVarP(&resolutionFlag, "resolution", "r", "", "Capture resolution, e.g. 960x720 or 720p")
	cmd.Flags().Float64VarP(&minAreaPercent, "min-area-percent", "a", 0, "Minimum motion area as a percentage of the frame")
	cmd.Flags().IntVarP(&preFrames, "pre-frames", "p", 0, "Frames kept before motion is confirmed")
	cmd.Flags().StringVarP(&remoteDir, "ftpwd", "w", "", "Remote working directory")
	cmd.Flags().IntVarP(&rotation, "rotation", "t", 0, "Output rotation angle in degrees")
	cmd.Flags().StringVar(&device, "device", "", "Camera device index, path or stream URL")

	return cmd
}

func runCapture(parent context.Context, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.newLogger(cfg)

	logger.Info("Configuration loaded",
		"device", cfg.CameraDevice,
		"resolution", cfg.Resolution,
		"minAreaPercent", cfg.MinAreaPercent,
		"preFrames", cfg.PreFrames,
		"rotation", cfg.Rotation,
		"remoteDir", cfg.RemoteDir,
		"retentionAge", cfg.RetentionAge,
	)

	// live settings: edits to the config file apply without a restart where a component allows it
	configProvider, err := config.NewCachedSettingsProvider(ctx.loader(), time.Minute, logger)
	if err != nil {
		return err
	}

	storeFactory, err := ctx.storeFactory(cfg, logger)
	if err != nil {
		return err
	}

	source, err := video.OpenWebcam(cfg.CameraDevice, cfg.CaptureResolution(), logger)
	if err != nil {
		return err
	}
	defer source.Close()

	detectionSettings := motiondetection.NewMotionDetectionSettingsProvider(configProvider).GetSettings()
	detectionSettings.AreaThreshold = motiondetection.AreaThreshold(source.Resolution(), cfg.MinAreaPercent, motiondetection.SignatureWidth)
	detector := motiondetection.NewDetector[*video.Frame, gocv.Mat](
		video.NewGoCVAnalyzer(motiondetection.SignatureWidth),
		detectionSettings,
		video.ReleaseFrame,
		logger,
	)

	var transcoder postprocessing.Transcoder
	if cfg.TranscodeCodec != "" {
		transcoder = postprocessing.NewFfmpegTranscoder(common.NewFFmpegCodecProvider(logger, common.FFmpegEncoderLister), logger)
	}
	assembler := postprocessing.NewAssembler[*video.Frame](
		video.NewGoCVClipEncoder(cfg.CaptureCodec, cfg.FrameRate, cfg.Rotation, logger),
		transcoder,
		postprocessing.NewPostProcessingSettingsProvider(configProvider),
		video.ReleaseFrame,
		logger,
	)

	uploadSettings := uploading.DefaultUploadQueueSettings
	uploadSettings.MaxRetries = cfg.UploadMaxRetries
	uploadSettings.DrainTimeout = cfg.DrainTimeout()
	uploadQueue := uploading.NewUploadQueue(storeFactory, uploading.NewUploader(cfg.LocalRoot, logger), uploadSettings, logger)

	clipLedger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	var scheduler *retention.Scheduler
	if cfg.RetentionEvery() > 0 {
		scheduler = retention.NewScheduler(
			storeFactory,
			retention.NewRetentionSettingsProvider(configProvider),
			retention.NewPassLock(cfg.LockPath),
			logger,
		)
	}

	p := pipeline.NewPipeline[*video.Frame](
		source,
		detector,
		recording.NewRecordingSettingsProvider(configProvider),
		assembler,
		uploadQueue,
		filemanagement.NewLocalFileTracker(cfg.OutputDirectory(), logger),
		clipLedger,
		scheduler,
		video.ReleaseFrame,
		pipeline.NewPipelineSettingsProvider(configProvider),
		logger,
	)

	if err := p.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	var server *status.Server
	if cfg.StatusPort > 0 {
		server = status.NewServer(cfg.StatusPort, status.NewStatusHandler(logger, p, clipLedger), logger)
		server.Start()
	}

	signalCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()
	logger.Info("Shutdown signal received, stopping capture...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to stop status API", "error", err)
		}
		cancel()
	}

	return p.Stop()
}
