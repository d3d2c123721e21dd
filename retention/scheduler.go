package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
)

// Scheduler runs retention passes on demand or on an interval, each on its own connection
type Scheduler struct {
	newStore client.StoreFactory
	settings config.SettingsProvider[RetentionSettings]
	lock     *PassLock
	logger   common.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastResult *PurgeResult
	lastError  error
	passes     int
}

// NewScheduler creates a scheduler. A nil lock allows overlapping passes from other processes.
func NewScheduler(newStore client.StoreFactory, settings config.SettingsProvider[RetentionSettings], lock *PassLock, logger common.Logger) *Scheduler {
	if logger == nil {
		logger = common.NopLogger
	}
	if lock == nil {
		lock = NewPassLock("")
	}
	return &Scheduler{
		newStore: newStore,
		settings: settings,
		lock:     lock,
		logger:   logger,
		now:      time.Now,
	}
}

// RunPass performs a single retention pass with the current settings
func (s *Scheduler) RunPass(ctx context.Context) (*PurgeResult, error) {
	settings := s.settings.GetSettings()

	release, err := s.lock.Acquire()
	if err != nil {
		if errors.Is(err, ErrPassInProgress) {
			s.logger.Warn("Skipping retention pass, another pass holds the lock", "lock", s.lock.Path())
		}
		return nil, err
	}
	defer release()

	store := s.newStore()
	if err := store.Connect(ctx); err != nil {
		s.record(nil, err)
		return nil, err
	}
	defer store.Quit()

	manager := NewManager(store, s.logger, WithDryRun(settings.DryRun), WithClock(s.now))
	result, err := manager.Purge(ctx, settings.Root, settings.AgeLimit)
	s.record(result, err)
	return result, err
}

// Run performs a pass immediately and then every interval until ctx is done.
// It returns at once when the interval is zero.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.settings.GetSettings().Interval
	if interval <= 0 {
		s.logger.Info("Retention scheduler disabled")
		return
	}

	for {
		if _, err := s.RunPass(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Retention pass failed", "error", err)
		}

		// the interval may change between passes when the config is reloaded
		if next := s.settings.GetSettings().Interval; next > 0 {
			interval = next
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// LastResult returns the outcome of the most recent pass
func (s *Scheduler) LastResult() (*PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastError
}

// Passes returns the number of passes attempted after acquiring the lock
func (s *Scheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

func (s *Scheduler) record(result *PurgeResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.lastResult = result
	s.lastError = err
}
