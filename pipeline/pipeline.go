package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
	filemanagement "github.com/yeti47/mocap/file-management"
	"github.com/yeti47/mocap/ledger"
	motiondetection "github.com/yeti47/mocap/motion-detection"
	postprocessing "github.com/yeti47/mocap/post-processing"
	"github.com/yeti47/mocap/recording"
	"github.com/yeti47/mocap/retention"
	"github.com/yeti47/mocap/uploading"
)

// PurgeSummary describes the most recent retention pass
type PurgeSummary struct {
	StartedAt time.Time `json:"started_at"`
	Scanned   int       `json:"scanned"`
	Deleted   int       `json:"deleted"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
}

// Stats is a snapshot of the pipeline counters
type Stats struct {
	Running          bool          `json:"running"`
	Recording        bool          `json:"recording"`
	FramesRead       uint64        `json:"frames_read"`
	ReadFailures     uint64        `json:"read_failures"`
	ClipsEmitted     uint64        `json:"clips_emitted"`
	ClipsQueued      int           `json:"clips_queued"`
	ClipsAssembled   uint64        `json:"clips_assembled"`
	AssemblyFailures uint64        `json:"assembly_failures"`
	UploadsQueued    int           `json:"uploads_queued"`
	Uploaded         uint64        `json:"uploaded"`
	UploadFailures   uint64        `json:"upload_failures"`
	Abandoned        uint64        `json:"abandoned"`
	LastPurge        *PurgeSummary `json:"last_purge,omitempty"`
}

// Pipeline wires the capture loop, the clip assembler and the upload queue into a fixed set of
// workers and runs the retention scheduler next to them.
type Pipeline[F any] struct {
	// Core components
	recorder    *recording.Recorder[F]
	clips       *common.Queue[*motiondetection.Clip[F]]
	assembler   postprocessing.ClipAssembler[F]
	uploadQueue uploading.UploadQueue
	fileTracker filemanagement.FileTracker
	ledger      ledger.Ledger
	scheduler   *retention.Scheduler
	release     motiondetection.FrameReleaser[F]

	settingsProvider config.SettingsProvider[PipelineSettings]
	logger           common.Logger

	clipsAssembled   atomic.Uint64
	assemblyFailures atomic.Uint64
	uploaded         atomic.Uint64
	uploadFailures   atomic.Uint64
	abandoned        atomic.Uint64

	// State management
	isRunning       bool
	mu              sync.RWMutex
	stopCapture     context.CancelFunc
	stopAssembly    context.CancelFunc
	stopRetention   context.CancelFunc
	shutdownChan    chan struct{}
	captureWG       sync.WaitGroup
	assemblyWG      sync.WaitGroup
	uploadWG        sync.WaitGroup
	retentionWG     sync.WaitGroup
	assemblyTimeout time.Duration
}

// NewPipeline creates a pipeline with injected dependencies. scheduler may be nil to disable
// retention; ledger may be nil to skip bookkeeping.
func NewPipeline[F any](
	source recording.FrameSource[F],
	detector motiondetection.MotionDetector[F],
	recordingSettings config.SettingsProvider[recording.RecordingSettings],
	assembler postprocessing.ClipAssembler[F],
	uploadQueue uploading.UploadQueue,
	fileTracker filemanagement.FileTracker,
	clipLedger ledger.Ledger,
	scheduler *retention.Scheduler,
	release motiondetection.FrameReleaser[F],
	settingsProvider config.SettingsProvider[PipelineSettings],
	logger common.Logger,
) *Pipeline[F] {
	if logger == nil {
		logger = common.NopLogger
	}
	if clipLedger == nil {
		clipLedger = ledger.NopLedger{}
	}
	if release == nil {
		release = func(F) {}
	}
	if settingsProvider == nil {
		settingsProvider = config.NewStaticSettingsProvider(DefaultPipelineSettings)
	}

	clips := common.NewQueue[*motiondetection.Clip[F]]()
	return &Pipeline[F]{
		recorder:         recording.NewRecorder(source, detector, clips, recordingSettings, logger),
		clips:            clips,
		assembler:        assembler,
		uploadQueue:      uploadQueue,
		fileTracker:      fileTracker,
		ledger:           clipLedger,
		scheduler:        scheduler,
		release:          release,
		settingsProvider: settingsProvider,
		logger:           logger,
	}
}

// Start launches the workers. Clips the ledger still lists as pending are queued for upload first.
func (p *Pipeline[F]) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("pipeline is already running")
	}

	p.logger.Info("Starting pipeline...")

	if err := p.fileTracker.EnsureOutputDirectory(); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if removed := p.fileTracker.CleanupStaleFiles(); removed > 0 {
		p.logger.Info("Removed stale files from an earlier run", "count", removed)
	}

	p.requeuePending()

	p.assemblyTimeout = p.settingsProvider.GetSettings().AssemblyDrainTimeout
	p.shutdownChan = make(chan struct{})

	// upload worker
	p.uploadWG.Add(1)
	go p.uploadQueue.Start(p.shutdownChan, &p.uploadWG, p.uploadCallbacks())

	// assembler worker
	assemblyCtx, stopAssembly := context.WithCancel(context.Background())
	p.stopAssembly = stopAssembly
	p.assemblyWG.Add(1)
	go p.runAssembler(assemblyCtx)

	// capture loop
	captureCtx, stopCapture := context.WithCancel(context.Background())
	p.stopCapture = stopCapture
	p.captureWG.Add(1)
	go func() {
		defer p.captureWG.Done()
		if !p.recorder.Run(captureCtx) {
			p.logger.Error("Recorder did not start (recorder busy)")
		}
	}()

	// retention
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	p.stopRetention = stopRetention
	if p.scheduler != nil {
		p.retentionWG.Add(1)
		go func() {
			defer p.retentionWG.Done()
			p.scheduler.Run(retentionCtx)
		}()
	}

	p.isRunning = true
	p.logger.Info("Pipeline started successfully")
	return nil
}

// Stop stops capturing and lets each downstream stage drain in order: the recorder flushes an
// unfinished episode, the assembler works through queued clips and the upload queue through
// queued files, each bounded by its drain timeout.
func (p *Pipeline[F]) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	p.logger.Info("Stopping pipeline...")

	p.stopCapture()
	p.captureWG.Wait()

	p.stopAssembly()
	p.assemblyWG.Wait()

	close(p.shutdownChan)
	p.uploadWG.Wait()

	p.stopRetention()
	p.retentionWG.Wait()

	p.fileTracker.CleanupStaleFiles()

	p.isRunning = false
	p.logger.Info("Pipeline stopped")
	return nil
}

// IsRunning returns whether the pipeline is currently running
func (p *Pipeline[F]) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Stats returns the current counters
func (p *Pipeline[F]) Stats() Stats {
	recorderStats := p.recorder.Stats()

	stats := Stats{
		Running:          p.IsRunning(),
		Recording:        recorderStats.Recording,
		FramesRead:       recorderStats.FramesRead,
		ReadFailures:     recorderStats.ReadFailures,
		ClipsEmitted:     recorderStats.ClipsEmitted,
		ClipsQueued:      p.clips.Len(),
		ClipsAssembled:   p.clipsAssembled.Load(),
		AssemblyFailures: p.assemblyFailures.Load(),
		UploadsQueued:    p.uploadQueue.Len(),
		Uploaded:         p.uploaded.Load(),
		UploadFailures:   p.uploadFailures.Load(),
		Abandoned:        p.abandoned.Load(),
	}

	if p.scheduler != nil {
		if result, err := p.scheduler.LastResult(); result != nil || err != nil {
			summary := &PurgeSummary{}
			if result != nil {
				summary.StartedAt = result.StartedAt
				summary.Scanned = result.Scanned
				summary.Deleted = len(result.Deleted)
				summary.Failed = result.Failed
			}
			if err != nil {
				summary.Error = err.Error()
			}
			stats.LastPurge = summary
		}
	}
	return stats
}

// Ledger exposes the clip ledger for read access
func (p *Pipeline[F]) Ledger() ledger.Ledger {
	return p.ledger
}

func (p *Pipeline[F]) runAssembler(ctx context.Context) {
	defer p.assemblyWG.Done()

	for {
		clip, ok := p.clips.Pop(ctx)
		if !ok {
			break
		}
		p.assemble(clip)
	}

	deadline := time.Now().Add(p.assemblyTimeout)
	for time.Now().Before(deadline) {
		clip, ok := p.clips.TryPop()
		if !ok {
			return
		}
		p.assemble(clip)
	}

	abandoned := p.clips.Drain()
	if len(abandoned) > 0 {
		p.logger.Warn("Assembly drain timeout, abandoning remaining clips", "count", len(abandoned))
	}
	for _, clip := range abandoned {
		p.logger.Warn("Abandoned clip", "clipID", clip.ID, "frames", len(clip.Frames))
		for _, frame := range clip.Frames {
			p.release(frame)
		}
	}
}

func (p *Pipeline[F]) assemble(clip *motiondetection.Clip[F]) {
	videoClip, err := p.assembler.Assemble(clip)
	if err != nil {
		p.assemblyFailures.Add(1)
		p.logger.Error("Failed to assemble clip", "clipID", clip.ID, "error", err)
		return
	}
	p.clipsAssembled.Add(1)

	record := &ledger.ClipRecord{
		ID:           videoClip.ID,
		Path:         videoClip.Path,
		RelativePath: videoClip.RelativePath,
		Frames:       videoClip.Frames,
		CreatedAt:    videoClip.Timestamp,
	}
	if err := p.ledger.Add(context.Background(), record); err != nil {
		p.logger.Error("Failed to record clip in ledger", "clipID", videoClip.ID, "error", err)
	}

	p.uploadQueue.Queue(&uploading.UploadJob{ClipID: videoClip.ID, FilePath: videoClip.Path})

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	p.logger.Debug("Clip queued for upload", "clipID", videoClip.ID, "heapAlloc", mem.HeapAlloc, "clipsQueued", p.clips.Len())
}

// requeuePending queues clips a previous run assembled but never uploaded
func (p *Pipeline[F]) requeuePending() {
	pending, err := p.ledger.ListPending(context.Background())
	if err != nil {
		p.logger.Error("Failed to list pending clips", "error", err)
		return
	}

	requeued := 0
	for _, record := range pending {
		if _, err := os.Stat(record.Path); err != nil {
			p.logger.Warn("Pending clip is gone locally", "clipID", record.ID, "path", record.Path)
			if err := p.ledger.MarkFailed(context.Background(), record.ID, 0, fmt.Errorf("local file missing: %w", err)); err != nil {
				p.logger.Error("Failed to update ledger", "clipID", record.ID, "error", err)
			}
			continue
		}
		p.uploadQueue.Queue(&uploading.UploadJob{ClipID: record.ID, FilePath: record.Path, QueuedAt: record.CreatedAt})
		requeued++
	}

	if requeued > 0 {
		p.logger.Info("Requeued pending clips from an earlier run", "count", requeued)
	}
}

func (p *Pipeline[F]) uploadCallbacks() uploading.UploadCallbacks {
	return uploading.UploadCallbacks{
		OnSuccess: func(job *uploading.UploadJob) {
			p.uploaded.Add(1)
			if err := p.ledger.MarkUploaded(context.Background(), job.ClipID, job.RetryCount+1, time.Now()); err != nil {
				p.logger.Error("Failed to update ledger", "clipID", job.ClipID, "error", err)
			}
			if !p.settingsProvider.GetSettings().KeepLocalClips {
				p.fileTracker.DeleteFile(job.FilePath)
			}
		},
		OnFailure: func(job *uploading.UploadJob, err error) {
			// the local file stays for a manual retry
			p.uploadFailures.Add(1)
			if err := p.ledger.MarkFailed(context.Background(), job.ClipID, job.RetryCount+1, err); err != nil {
				p.logger.Error("Failed to update ledger", "clipID", job.ClipID, "error", err)
			}
		},
		OnAbandoned: func(job *uploading.UploadJob) {
			// still pending in the ledger, picked up by the next start
			p.abandoned.Add(1)
		},
	}
}
