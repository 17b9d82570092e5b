package themis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

var unsafeLabel = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Snapshot lists the files written for one failure.
type Snapshot struct {
	Screenshot string
	HTML       string
}

// Reference is the path reported to callers, preferring the screenshot.
func (s *Snapshot) Reference() string {
	if s == nil {
		return ""
	}
	if s.Screenshot != "" {
		return s.Screenshot
	}
	return s.HTML
}

// Collector writes a screenshot and the page markup when a workflow fails.
type Collector struct {
	cfg    config.DiagnosticsConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewCollector(cfg config.DiagnosticsConfig, logger *zap.Logger) *Collector {
	return &Collector{cfg: cfg, logger: logger.Named("diagnostics"), now: time.Now}
}

// Capture snapshots page. It returns a nil Snapshot when disabled. Partial
// captures return what was written along with the error for the rest.
func (c *Collector) Capture(ctx context.Context, page Page, label string) (*Snapshot, error) {
	if !c.cfg.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics dir: %w", err)
	}

	base := fmt.Sprintf("%s-%s-%s",
		unsafeLabel.ReplaceAllString(label, "_"),
		c.now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8])
	snap := &Snapshot{}
	var errs []error

	if img, err := page.Screenshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	} else if path, err := c.write(base+".jpg", img); err != nil {
		errs = append(errs, err)
	} else {
		snap.Screenshot = path
	}

	if html, err := page.OuterHTML(ctx, "html"); err != nil {
		errs = append(errs, fmt.Errorf("html: %w", err))
	} else if path, err := c.write(base+".html", []byte(html)); err != nil {
		errs = append(errs, err)
	} else {
		snap.HTML = path
	}

	if snap.Screenshot == "" && snap.HTML == "" {
		return nil, errors.Join(errs...)
	}
	c.logger.Info("Diagnostic snapshot written.", zap.String("screenshot", snap.Screenshot), zap.String("html", snap.HTML))
	return snap, errors.Join(errs...)
}

func (c *Collector) write(name string, data []byte) (string, error) {
	path := filepath.Join(c.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
