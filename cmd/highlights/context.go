package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/llm"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/service"
)

// commandContext lazily loads configuration and opens the store for a single CLI invocation.
type commandContext struct {
	driverFlag *string
	sqliteFlag *string
	logOutput  io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     *slog.Logger

	store *service.StoreHandle
}

func newCommandContext(driverFlag, sqliteFlag *string, logOutput io.Writer) *commandContext {
	return &commandContext{driverFlag: driverFlag, sqliteFlag: sqliteFlag, logOutput: logOutput}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}

		if v := strings.ToLower(strings.TrimSpace(*c.driverFlag)); v != "" {
			if v != config.StoreDriverPostgres && v != config.StoreDriverSQLite {
				c.configErr = fmt.Errorf("--driver must be %q or %q", config.StoreDriverPostgres, config.StoreDriverSQLite)
				return
			}

			cfg.StoreDriver = v
		}

		if v := strings.TrimSpace(*c.sqliteFlag); v != "" {
			cfg.SQLitePath = v
		}

		c.config = cfg
		c.logger = observability.SetupLogging(cfg.LogLevel, c.logOutput)
	})

	return c.config, c.configErr
}

func (c *commandContext) openStore(ctx context.Context) (*service.StoreHandle, error) {
	if c.store != nil {
		return c.store, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	store, err := service.OpenStore(ctx, cfg, c.logger)
	if err != nil {
		return nil, err
	}

	c.store = store

	return store, nil
}

// gateway selects a model backend. When required is false a missing backend is reported as (nil, nil).
func (c *commandContext) gateway(ctx context.Context, required bool) (*llm.Gateway, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	g, err := service.NewGateway(ctx, cfg.Providers, nil, c.logger)
	if err != nil {
		if !required && errors.Is(err, llm.ErrNoProviderAvailable) {
			c.logger.Warn("no model provider configured; answering with keyword search only")

			return nil, nil
		}

		return nil, err
	}

	return g, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
}
