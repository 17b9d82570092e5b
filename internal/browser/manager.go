// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/humanoid"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
)

const (
	sharedLaunchKey      = "shared-browser"
	defaultLaunchTimeout = 30 * time.Second
	defaultNavTimeout    = 60 * time.Second
)

// instance is one running Chrome process reachable through a browser-level
// chromedp context. New tabs are derived from ctx.
type instance struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	// lost is closed by chromedp when the DevTools websocket drops.
	lost <-chan struct{}
}

func (i *instance) alive() bool {
	select {
	case <-i.ctx.Done():
		return false
	case <-i.lost:
		return false
	default:
		return true
	}
}

type launchFunc func(ctx context.Context) (*instance, error)

// Manager owns the browser process (or processes, in transient mode) and hands
// out one Tab per caller.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	typist *humanoid.Typist
	launch launchFunc

	// ctx bounds background launches; stop cancels it on shutdown.
	ctx  context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	current *instance
	closed  bool

	launches singleflight.Group
	nextID   atomic.Uint64
	pages    sync.WaitGroup
	bg       sync.WaitGroup
}

// NewManager creates a manager. No browser is started until Start or the first NewPage.
func NewManager(cfg config.BrowserConfig, typist *humanoid.Typist, logger *zap.Logger) *Manager {
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = defaultLaunchTimeout
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		logger: logger.Named("browser"),
		typist: typist,
		ctx:    ctx,
		stop:   stop,
	}
	m.launch = m.startChrome
	return m
}

// Mode returns the session policy, "persistent" or "transient".
func (m *Manager) Mode() string {
	if m.cfg.Mode == config.BrowserModeTransient {
		return config.BrowserModeTransient
	}
	return config.BrowserModePersistent
}

func (m *Manager) persistent() bool {
	return m.Mode() == config.BrowserModePersistent
}

// Start eagerly launches the shared browser in persistent mode. It is a no-op
// in transient mode.
func (m *Manager) Start(ctx context.Context) error {
	if !m.persistent() {
		return nil
	}
	_, err := m.acquire(ctx)
	return err
}

// NewPage opens a fresh tab for exclusive use by the caller, who must Close it.
func (m *Manager) NewPage(ctx context.Context) (*Tab, error) {
	tab, inst, err := m.newPage(ctx)
	if err == nil || !m.persistent() || ctx.Err() != nil {
		return tab, err
	}
	// The shared browser may have died between acquire and the tab opening.
	// One more try picks up the relaunched instance.
	if inst != nil && !inst.alive() {
		m.logger.Warn("Shared browser died while opening a tab; retrying once.", zap.Error(err))
		tab, _, err = m.newPage(ctx)
	}
	return tab, err
}

func (m *Manager) newPage(ctx context.Context) (*Tab, *instance, error) {
	var (
		inst *instance
		err  error
	)
	owned := !m.persistent()
	if owned {
		launchCtx, cancel := CombineContext(ctx, m.ctx)
		inst, err = m.launchWithRetry(launchCtx)
		cancel()
	} else {
		inst, err = m.acquire(ctx)
	}
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if owned {
			inst.cancel()
		}
		return nil, nil, ErrManagerClosed
	}
	m.pages.Add(1)
	m.mu.Unlock()
	observability.PageOpened()

	release := func() {
		if owned {
			inst.cancel()
		}
		observability.PageClosed()
		m.pages.Done()
	}

	tab, err := openTab(ctx, inst, m.cfg, m.typist, m.logger)
	if err != nil {
		release()
		return nil, inst, err
	}
	tab.release = release
	tab.logger.Debug("Tab opened.", zap.Uint64("instance", inst.id), zap.String("mode", m.Mode()))
	return tab, inst, nil
}

// acquire returns the shared instance, launching it when absent or dead.
// Concurrent callers share a single launch.
func (m *Manager) acquire(ctx context.Context) (*instance, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if inst := m.current; inst != nil && inst.alive() {
		m.mu.Unlock()
		return inst, nil
	}
	m.mu.Unlock()

	ch := m.launches.DoChan(sharedLaunchKey, func() (interface{}, error) {
		return m.launchShared()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*instance), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) launchShared() (*instance, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if inst := m.current; inst != nil && inst.alive() {
		m.mu.Unlock()
		return inst, nil
	}
	m.bg.Add(1)
	m.mu.Unlock()
	defer m.bg.Done()

	inst, err := m.launchWithRetry(m.ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		inst.cancel()
		return nil, ErrManagerClosed
	}
	m.current = inst
	m.bg.Add(1)
	go m.watch(inst)
	return inst, nil
}

// watch waits for the shared instance to die and, unless the manager is
// shutting down, relaunches it in the background so the next request finds a
// healthy browser.
func (m *Manager) watch(inst *instance) {
	defer m.bg.Done()

	select {
	case <-inst.lost:
	case <-inst.ctx.Done():
	}

	m.mu.Lock()
	wasCurrent := m.current == inst
	if wasCurrent {
		m.current = nil
	}
	closed := m.closed
	m.mu.Unlock()

	inst.cancel()
	if !wasCurrent || closed {
		return
	}

	m.logger.Warn("Browser connection lost; relaunching in background.", zap.Uint64("instance", inst.id))
	res := <-m.launches.DoChan(sharedLaunchKey, func() (interface{}, error) {
		return m.launchShared()
	})
	if res.Err != nil && !errors.Is(res.Err, ErrManagerClosed) && !errors.Is(res.Err, context.Canceled) {
		m.logger.Error("Background relaunch failed; the next request will try again.", zap.Error(res.Err))
	}
}

// launchWithRetry starts a browser, retrying with a constant backoff.
func (m *Manager) launchWithRetry(ctx context.Context) (*instance, error) {
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.LaunchBackoff), uint64(m.cfg.LaunchRetries)),
		ctx,
	)

	inst, err := backoff.RetryNotifyWithData(func() (*instance, error) {
		attempts++
		inst, err := m.launch(ctx)
		if err != nil {
			observability.ObserveBrowserLaunch("error")
			return nil, err
		}
		observability.ObserveBrowserLaunch("ok")
		return inst, nil
	}, policy, func(err error, wait time.Duration) {
		m.logger.Warn("Browser launch failed; retrying.",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		m.logger.Error("Browser launch gave up.", zap.Int("attempts", attempts), zap.Error(err))
		return nil, &LaunchError{Attempts: attempts, Err: err}
	}
	m.logger.Info("Browser launched.", zap.Uint64("instance", inst.id), zap.Int("attempts", attempts))
	return inst, nil
}

// startChrome runs a new Chrome process and waits for it to accept commands.
func (m *Manager) startChrome(ctx context.Context) (*instance, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(m.cfg)...)

	sugar := m.logger.Sugar()
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(sugar.Errorf)}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run allocates the browser and must use the browser context
	// itself: a deadline on it would kill the process when it fired.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(m.cfg.LaunchTimeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("browser start timed out after %s", m.cfg.LaunchTimeout)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	var lost <-chan struct{}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		lost = c.Browser.LostConnection
	}
	return &instance{
		id:     m.nextID.Add(1),
		ctx:    browserCtx,
		cancel: cancel,
		lost:   lost,
	}, nil
}

// Shutdown stops handing out tabs, waits for open ones to close (or for ctx to
// expire) and then terminates the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("Shutting down browser manager.")
	done := make(chan struct{})
	go func() {
		m.pages.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timed out waiting for open tabs; closing the browser anyway.")
		err = ctx.Err()
	}

	m.stop()
	m.mu.Lock()
	inst := m.current
	m.current = nil
	m.mu.Unlock()
	if inst != nil {
		inst.cancel()
	}
	m.bg.Wait()
	m.logger.Info("Browser manager shut down.")
	return err
}
