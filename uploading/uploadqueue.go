package uploading

import (
	"context"
	"sync"
	"time"

	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/common"
)

// UploadCallbacks are invoked from the worker goroutine. Any of them may be nil.
type UploadCallbacks struct {
	OnSuccess   func(job *UploadJob)
	OnFailure   func(job *UploadJob, err error)
	OnAbandoned func(job *UploadJob)
}

// UploadQueue handles uploading clip files to the remote store
type UploadQueue interface {
	// Queue adds an upload job to the queue; it never blocks.
	Queue(job *UploadJob) bool

	// Start processes the queue until stopChan is closed, then drains it with the drain timeout.
	Start(stopChan <-chan struct{}, wg *sync.WaitGroup, callbacks UploadCallbacks)

	// Drain processes remaining uploads with timeout and returns the jobs left for a later run
	Drain(timeout time.Duration, callbacks UploadCallbacks) []*UploadJob

	Len() int
}

type UploadQueueSettings struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration // per job, covering connect, upload and quit
	DrainTimeout   time.Duration
}

var DefaultUploadQueueSettings = UploadQueueSettings{
	MaxRetries:     3,
	RetryDelay:     5 * time.Second,
	RequestTimeout: 60 * time.Second,
	DrainTimeout:   30 * time.Second,
}

// uploadQueue implements UploadQueue with one worker and one remote connection per job
type uploadQueue struct {
	newStore UploadStoreFactory
	uploader *Uploader
	queue    *common.Queue[*UploadJob]
	settings UploadQueueSettings
	logger   common.Logger
}

// UploadStoreFactory creates the store used for a single job
type UploadStoreFactory = client.StoreFactory

// NewUploadQueue creates a new upload queue
func NewUploadQueue(newStore UploadStoreFactory, uploader *Uploader, settings UploadQueueSettings, logger common.Logger) UploadQueue {
	if logger == nil {
		logger = common.NopLogger
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = DefaultUploadQueueSettings.RequestTimeout
	}
	return &uploadQueue{
		newStore: newStore,
		uploader: uploader,
		queue:    common.NewQueue[*UploadJob](),
		settings: settings,
		logger:   logger,
	}
}

func (s *uploadQueue) Queue(job *UploadJob) bool {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}
	s.queue.Push(job)
	s.logger.Info("Queued clip for upload", "path", job.FilePath, "pending", s.queue.Len())
	return true
}

func (s *uploadQueue) Len() int {
	return s.queue.Len()
}

func (s *uploadQueue) Start(stopChan <-chan struct{}, wg *sync.WaitGroup, callbacks UploadCallbacks) {
	defer wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		job, ok := s.queue.Pop(ctx)
		if !ok {
			break
		}

		err := s.uploadClip(job)
		if err == nil {
			if callbacks.OnSuccess != nil {
				callbacks.OnSuccess(job)
			}
			continue
		}

		if client.IsRecoverable(err) && job.RetryCount < s.settings.MaxRetries {
			job.RetryCount++
			s.logger.Warn("Upload failed, will retry", "path", job.FilePath, "attempt", job.RetryCount, "error", err)
			s.queue.Push(job)
			if !s.wait(ctx, s.settings.RetryDelay) {
				break
			}
			continue
		}

		s.fail(job, err, callbacks)
	}

	s.Drain(s.settings.DrainTimeout, callbacks)
}

// Drain uploads what is queued until the queue is empty or timeout passes. Jobs still queued
// afterwards are reported as abandoned and returned. Failed jobs are not retried while draining:
// a recoverable failure abandons the job, anything else fails it.
func (s *uploadQueue) Drain(timeout time.Duration, callbacks UploadCallbacks) []*UploadJob {
	deadline := time.Now().Add(timeout)
	var abandoned []*UploadJob

	for time.Now().Before(deadline) {
		job, ok := s.queue.TryPop()
		if !ok {
			break
		}
		err := s.uploadClip(job)
		switch {
		case err == nil:
			if callbacks.OnSuccess != nil {
				callbacks.OnSuccess(job)
			}
		case client.IsRecoverable(err):
			job.LastError = err
			s.logger.Warn("Upload failed while draining, leaving it for the next run", "path", job.FilePath, "error", err)
			abandoned = append(abandoned, s.abandon(job, callbacks))
		default:
			s.fail(job, err, callbacks)
		}
	}

	remaining := s.queue.Drain()
	if len(remaining) > 0 {
		s.logger.Warn("Upload queue drain timeout, abandoning remaining uploads", "count", len(remaining))
		for _, job := range remaining {
			abandoned = append(abandoned, s.abandon(job, callbacks))
		}
	}
	return abandoned
}

func (s *uploadQueue) abandon(job *UploadJob, callbacks UploadCallbacks) *UploadJob {
	s.logger.Warn("Abandoned upload", "path", job.FilePath)
	if callbacks.OnAbandoned != nil {
		callbacks.OnAbandoned(job)
	}
	return job
}

func (s *uploadQueue) fail(job *UploadJob, err error, callbacks UploadCallbacks) {
	job.LastError = err
	s.logger.Error("Failed to upload clip", "path", job.FilePath, "attempts", job.RetryCount+1, "error", err)
	if callbacks.OnFailure != nil {
		callbacks.OnFailure(job, err)
	}
}

// uploadClip runs one job on its own connection
func (s *uploadQueue) uploadClip(job *UploadJob) error {
	s.logger.Info("Uploading clip", "path", job.FilePath, "attempt", job.RetryCount+1)

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.RequestTimeout)
	defer cancel()

	store := s.newStore()
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer store.Quit()

	return s.uploader.Upload(ctx, store, job.FilePath)
}

func (s *uploadQueue) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
