// internal/browser/tab.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/humanoid"
)

const (
	screenshotQuality = 90
	closeTimeout      = 10 * time.Second
)

// namedKeys maps the portable key names used by callers to chromedp key codes.
var namedKeys = map[string]string{
	"ArrowDown": kb.ArrowDown,
	"ArrowUp":   kb.ArrowUp,
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
	"Delete":    kb.Delete,
}

// Tab is a single browser target owned by one request.
type Tab struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	lost       <-chan struct{}
	typist     *humanoid.Typist
	navTimeout time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	closed  bool
	release func()
}

func openTab(ctx context.Context, inst *instance, cfg config.BrowserConfig, typist *humanoid.Typist, logger *zap.Logger) (*Tab, error) {
	tabCtx, tabCancel := chromedp.NewContext(inst.ctx)

	// Like the browser itself, the target is created by the first Run and is
	// bound to the context that Run received.
	created := make(chan error, 1)
	go func() {
		created <- chromedp.Run(tabCtx,
			network.SetCacheDisabled(cfg.DisableCache),
			applyPersona(cfg.Persona, cfg.UserAgent, logger),
		)
	}()
	select {
	case err := <-created:
		if err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to open tab: %w", err)
		}
	case <-ctx.Done():
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", ctx.Err())
	}

	id := uuid.New().String()
	return &Tab{
		id:         id,
		ctx:        tabCtx,
		cancel:     tabCancel,
		lost:       inst.lost,
		typist:     typist,
		navTimeout: cfg.NavTimeout,
		logger:     logger.With(zap.String("page_id", id[:8])),
	}, nil
}

// ID returns the tab's unique identifier.
func (t *Tab) ID() string { return t.id }

func (t *Tab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// run executes actions under the tab context, canceled by ctx and bounded by
// timeout when positive. Errors keep ctx's error in the chain so callers can
// tell a request deadline from a failed action.
func (t *Tab) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	if t.isClosed() {
		return fmt.Errorf("%s: %w", op, ErrPageClosed)
	}
	runCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	select {
	case <-t.lost:
		return fmt.Errorf("%s: %w", op, ErrConnectionLost)
	default:
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", op, timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// Navigate loads url and waits for the body to be ready.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.logger.Debug("Navigating.", zap.String("url", url))
	return t.run(ctx, "navigation", t.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Reload reloads the current document.
func (t *Tab) Reload(ctx context.Context) error {
	return t.run(ctx, "reload", t.navTimeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitVisible blocks until selector matches a visible element or ctx ends.
func (t *Tab) WaitVisible(ctx context.Context, selector string) error {
	return t.run(ctx, fmt.Sprintf("wait for %q", selector), 0, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Click clicks the first visible element matching selector.
func (t *Tab) Click(ctx context.Context, selector string) error {
	return t.run(ctx, fmt.Sprintf("click %q", selector), 0, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickInRow clicks the first visible element matching selector inside row.
// It reports false, without clicking, when the row or the element is absent
// or has no rendered box.
func (t *Tab) ClickInRow(ctx context.Context, row RowRef, selector string) (bool, error) {
	path := row.elementPath(selector)
	var rendered bool
	check := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.scrollIntoView({ block: "center" });
		const box = el.getBoundingClientRect();
		return box.width > 0 && box.height > 0;
	})()`, path)
	op := fmt.Sprintf("click %q in row %d", selector, row.Index)
	if err := t.run(ctx, op, 0, chromedp.Evaluate(check, &rendered)); err != nil {
		return false, err
	}
	if !rendered {
		return false, nil
	}
	if err := t.run(ctx, op, 0, chromedp.Click(path, chromedp.ByJSPath)); err != nil {
		return false, err
	}
	return true, nil
}

// Clear empties an input with select-all + delete. Inputs that swallow the
// shortcut are cleared through the DOM.
func (t *Tab) Clear(ctx context.Context, selector string) error {
	if err := t.run(ctx, fmt.Sprintf("clear %q", selector), 0,
		chromedp.Focus(selector, chromedp.ByQuery),
		selectAll(),
		chromedp.KeyEvent(kb.Delete),
	); err != nil {
		return err
	}

	var leftover bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || !("value" in el) || el.value === "") return false;
		el.value = "";
		el.dispatchEvent(new Event("input", { bubbles: true }));
		return true;
	})()`, jsString(selector))
	if err := t.run(ctx, "clear fallback", 0, chromedp.Evaluate(script, &leftover)); err != nil {
		return err
	}
	if leftover {
		t.logger.Debug("Select-all did not clear the field; cleared via DOM.", zap.String("selector", selector))
	}
	return nil
}

// selectAll sends Ctrl+A to the focused element.
func selectAll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		down := input.DispatchKeyEvent(input.KeyDown).
			WithModifiers(input.ModifierCtrl).
			WithKey("a").
			WithCode("KeyA").
			WithWindowsVirtualKeyCode(65)
		if err := down.Do(ctx); err != nil {
			return err
		}
		return input.DispatchKeyEvent(input.KeyUp).
			WithModifiers(input.ModifierCtrl).
			WithKey("a").
			WithCode("KeyA").
			WithWindowsVirtualKeyCode(65).
			Do(ctx)
	})
}

// Type focuses selector and types text one character at a time with the
// configured keystroke pacing.
func (t *Tab) Type(ctx context.Context, selector, text string) error {
	if err := t.run(ctx, fmt.Sprintf("focus %q", selector), 0, chromedp.Focus(selector, chromedp.ByQuery)); err != nil {
		return err
	}
	if err := humanoid.Sleep(ctx, t.typist.FocusWait()); err != nil {
		return err
	}
	return t.typist.Type(ctx, text, func(ctx context.Context, r rune) error {
		return t.run(ctx, "type", 0, chromedp.KeyEvent(string(r)))
	})
}

// PressKey sends a named key such as "ArrowDown" or "Enter" to the focused element.
func (t *Tab) PressKey(ctx context.Context, key string) error {
	code, ok := namedKeys[key]
	if !ok {
		code = key
	}
	return t.run(ctx, fmt.Sprintf("press %s", key), 0, chromedp.KeyEvent(code))
}

// SetValue assigns the value property of the matched element directly.
func (t *Tab) SetValue(ctx context.Context, selector, value string) error {
	return t.run(ctx, fmt.Sprintf("set value of %q", selector), 0, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// SelectOption selects the option of a <select> whose label or value matches
// label, ignoring case and surrounding space. It does not fire change events.
func (t *Tab) SelectOption(ctx context.Context, selector, label string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || !el.options) return false;
		const want = %s.trim().toLowerCase();
		for (const opt of el.options) {
			if (opt.text.trim().toLowerCase() === want || opt.value.trim().toLowerCase() === want) {
				el.value = opt.value;
				return true;
			}
		}
		return false;
	})()`, jsString(selector), jsString(label))
	err := t.run(ctx, fmt.Sprintf("select %q", selector), 0, chromedp.Evaluate(script, &found))
	return found, err
}

// DispatchChange fires input and change events on the matched element.
func (t *Tab) DispatchChange(ctx context.Context, selector string) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	})()`, jsString(selector))
	if err := t.run(ctx, fmt.Sprintf("dispatch change on %q", selector), 0, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("dispatch change: no element matches %q", selector)
	}
	return nil
}

// Location returns the current document URL.
func (t *Tab) Location(ctx context.Context) (string, error) {
	var url string
	err := t.run(ctx, "read location", 0, chromedp.Location(&url))
	return url, err
}

// BodyText returns the rendered text of the document body.
func (t *Tab) BodyText(ctx context.Context) (string, error) {
	var text string
	err := t.run(ctx, "read body text", 0, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// OuterHTML returns the markup of the first element matching selector, or an
// empty string when nothing matches.
func (t *Tab) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.outerHTML : ""; })()`, jsString(selector))
	err := t.run(ctx, fmt.Sprintf("read html of %q", selector), 0, chromedp.Evaluate(script, &html))
	return html, err
}

// CountNodes returns how many elements currently match selector.
func (t *Tab) CountNodes(ctx context.Context, selector string) (int, error) {
	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	err := t.run(ctx, fmt.Sprintf("count %q", selector), 0, chromedp.Evaluate(script, &n))
	return n, err
}

// Screenshot captures the full page as a JPEG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := t.run(ctx, "screenshot", 0, chromedp.FullScreenshot(&buf, screenshotQuality))
	return buf, err
}

// Close closes the target and releases the tab's hold on the browser. It is
// safe to call more than once.
func (t *Tab) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	release := t.release
	t.mu.Unlock()

	t.cancel()

	var err error
	select {
	case <-t.ctx.Done():
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(closeTimeout):
		err = fmt.Errorf("tab close timed out after %s", closeTimeout)
	}
	if release != nil {
		release()
	}
	t.logger.Debug("Tab closed.")
	return err
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshaling a string cannot fail.
		return `""`
	}
	return string(b)
}
