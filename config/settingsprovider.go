package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yeti47/mocap/common"
)

// DefaultSettingsCacheTimeout is the default cache timeout period
const DefaultSettingsCacheTimeout = 5 * time.Minute

type SettingsProvider[T any] interface {
	// GetSettings returns the current settings of type T.
	GetSettings() T
}

// StaticSettingsProvider always returns the same settings
type StaticSettingsProvider[T any] struct {
	settings T
}

func NewStaticSettingsProvider[T any](settings T) *StaticSettingsProvider[T] {
	return &StaticSettingsProvider[T]{settings: settings}
}

func (p *StaticSettingsProvider[T]) GetSettings() T {
	return p.settings
}

// SettingsLoader fetches a fresh copy of the settings
type SettingsLoader[T any] func(ctx context.Context) (T, error)

// CachedSettingsProvider serves cached settings and refreshes them in the background once stale.
// A failed refresh keeps the previous settings.
type CachedSettingsProvider[T any] struct {
	load            SettingsLoader[T]
	logger          common.Logger
	mutex           sync.RWMutex
	cachedSettings  T
	lastFetchTime   time.Time
	fetchInProgress bool
	cacheTimeout    time.Duration
	now             func() time.Time
}

// NewCachedSettingsProvider performs an initial load and returns an error if it fails.
// If cacheTimeout is 0, DefaultSettingsCacheTimeout is used.
func NewCachedSettingsProvider[T any](load SettingsLoader[T], cacheTimeout time.Duration, logger common.Logger) (*CachedSettingsProvider[T], error) {
	if cacheTimeout == 0 {
		cacheTimeout = DefaultSettingsCacheTimeout
	}
	if logger == nil {
		logger = common.NopLogger
	}

	provider := &CachedSettingsProvider[T]{
		load:         load,
		logger:       logger,
		cacheTimeout: cacheTimeout,
		now:          time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	settings, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial settings: %w", err)
	}

	provider.cachedSettings = settings
	provider.lastFetchTime = provider.now()

	return provider, nil
}

// GetSettings returns the current settings without blocking, starting a refresh when they are stale.
func (p *CachedSettingsProvider[T]) GetSettings() T {
	p.mutex.RLock()
	needsRefresh := p.now().Sub(p.lastFetchTime) > p.cacheTimeout
	fetchInProgress := p.fetchInProgress
	current := p.cachedSettings
	p.mutex.RUnlock()

	if needsRefresh && !fetchInProgress {
		go p.refresh()
	}

	return current
}

// Refresh reloads the settings synchronously
func (p *CachedSettingsProvider[T]) Refresh(ctx context.Context) error {
	settings, err := p.load(ctx)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	p.cachedSettings = settings
	p.lastFetchTime = p.now()
	p.mutex.Unlock()
	return nil
}

func (p *CachedSettingsProvider[T]) refresh() {
	p.mutex.Lock()
	if p.fetchInProgress {
		p.mutex.Unlock()
		return
	}
	p.fetchInProgress = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		p.fetchInProgress = false
		p.mutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("Failed to refresh settings, keeping previous values", "error", err)
	}
}

// FileLoader returns a loader that re-reads the JSON config file on every call
func FileLoader(filename string) SettingsLoader[*Config] {
	return func(ctx context.Context) (*Config, error) {
		cfg, err := LoadConfig(filename)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
}
