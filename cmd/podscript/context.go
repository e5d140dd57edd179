package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podscript/internal/config"
	"podscript/internal/logging"
	"podscript/internal/profiles"
	"podscript/internal/store"
	"podscript/internal/tracing"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	mu       sync.Mutex
	store    *store.Store
	shutdown tracing.ShutdownFunc
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openStore returns the run-history store, opened once per invocation.
func (c *commandContext) openStore() (*store.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}
	c.store = st
	return st, nil
}

func (c *commandContext) withStore(cmd *cobra.Command, fn func(*store.Store) error) error {
	defer c.release(cmd)
	st, err := c.openStore()
	if err != nil {
		return err
	}
	return fn(st)
}

func (c *commandContext) catalog() (*profiles.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return profiles.Load(cfg.Paths.ProfilesDir)
}

// startTracing installs the configured tracer provider. It is a no-op when
// tracing is disabled; the provider is flushed by close.
func (c *commandContext) startTracing(ctx context.Context) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	shutdown, err := tracing.Setup(ctx, cfg.Tracing, logger, tracing.WithVersion(version))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.shutdown = shutdown
	c.mu.Unlock()
	return nil
}

func (c *commandContext) close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.shutdown != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		errs = append(errs, c.shutdown(context.WithoutCancel(ctx)))
		c.shutdown = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

// release closes whatever the command opened. Commands defer it so spans
// and the store are flushed on the error path too.
func (c *commandContext) release(cmd *cobra.Command) {
	if err := c.close(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
