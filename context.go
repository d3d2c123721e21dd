package main

import (
	"context"
	"fmt"

	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/config"
	"github.com/yeti47/mocap/ledger"
)

// commandContext carries the root flags and lazily loaded configuration shared by subcommands
type commandContext struct {
	configFlag *string
	testFlag   *bool
	overrides  config.ConfigOverrides
	cfg        *config.Config
}

func newCommandContext(configFlag *string, testFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		testFlag:   testFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return config.DefaultConfigFile
	}
	return *c.configFlag
}

func (c *commandContext) testMode() bool {
	return c.testFlag != nil && *c.testFlag
}

// loader re-reads the config file and applies the command line overrides on every call
func (c *commandContext) loader() config.SettingsLoader[*config.Config] {
	load := config.FileLoader(c.configPath())
	return func(ctx context.Context) (*config.Config, error) {
		cfg, err := load(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Override(c.overrides)
		return cfg, cfg.Validate()
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := c.loader()(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// quietLogger is used by commands whose stdout is meant for a human
func quietLogger() common.Logger {
	return common.CreateLogger(common.LoggerOptions{Level: common.LogLevelWarn})
}

func (c *commandContext) newLogger(cfg *config.Config) common.Logger {
	return common.CreateLogger(common.LoggerOptions{
		Level:      common.LogLevel(cfg.LogLevel),
		Dir:        cfg.LogPath,
		Name:       "mocap",
		RetainDays: cfg.LogRetainDays,
	})
}

// storeFactory returns the FTP store factory, or an in-memory one in test mode
func (c *commandContext) storeFactory(cfg *config.Config, logger common.Logger) (client.StoreFactory, error) {
	if c.testMode() {
		logger.Info("Running in TEST MODE with an in-memory remote store")
		return client.NewMemoryRemoteStore(cfg.RemoteDir).Factory(), nil
	}

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return client.FTPStoreFactory(creds.Host, creds.User, creds.Password, cfg.RemoteDir, cfg.RemoteTimeout(), logger), nil
}

// connect opens a single remote session for one-shot commands
func (c *commandContext) connect(ctx context.Context, cfg *config.Config, logger common.Logger) (client.RemoteStore, error) {
	factory, err := c.storeFactory(cfg, logger)
	if err != nil {
		return nil, err
	}
	store := factory()
	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}
	return store, nil
}

// openLedger opens the configured ledger; without a ledger path a NopLedger is returned
func openLedger(cfg *config.Config) (ledger.Ledger, func(), error) {
	if cfg.LedgerPath == "" {
		return ledger.NopLedger{}, func() {}, nil
	}
	db, err := ledger.OpenDB(cfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	clipLedger, err := ledger.NewSQLiteLedger(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return clipLedger, func() { db.Close() }, nil
}
