package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/humanoid"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
	"github.com/AdeilsonR/puppeteer-themis/internal/server"
	"github.com/AdeilsonR/puppeteer-themis/internal/themis"
)

const componentShutdownTimeout = 30 * time.Second

// components holds the initialized services.
type components struct {
	Workflow    server.Workflow
	BrowserMode string
	shutdown    func(ctx context.Context) error
}

// Shutdown releases the browser. It is safe on a partially built value.
func (c *components) Shutdown() {
	if c == nil || c.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), componentShutdownTimeout)
	defer cancel()
	if err := c.shutdown(ctx); err != nil {
		observability.GetLogger().Warn("Error during browser manager shutdown", zap.Error(err))
	}
}

// initializeComponents wires browser manager and workflow service. Tests
// replace it to run commands without Chrome.
var initializeComponents = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	typist := humanoid.NewTypist(cfg.Typing, nil)
	manager := browser.NewManager(cfg.Browser, typist, logger)
	c := &components{BrowserMode: manager.Mode(), shutdown: manager.Shutdown}

	if cfg.Browser.EagerLaunch {
		if err := manager.Start(ctx); err != nil {
			return c, fmt.Errorf("failed to start browser: %w", err)
		}
	}

	pages := themis.PageSourceFunc(func(ctx context.Context) (themis.ClosablePage, error) {
		tab, err := manager.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return tab, nil
	})
	svc, err := themis.NewService(cfg, pages, logger)
	if err != nil {
		return c, fmt.Errorf("failed to initialize workflow service: %w", err)
	}
	c.Workflow = svc
	return c, nil
}
