// Package humanoid paces keystrokes so form input does not arrive at machine
// speed. The portal throttles sessions that type instantly.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

// commonBigrams are typed faster than arbitrary pairs.
var commonBigrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true, "de": true, "ra": true,
	"os": true, "ar": true, "en": true,
}

const bigramSpeedup = 0.7

// KeySender delivers one character to the focused element.
type KeySender func(ctx context.Context, r rune) error

// Typist types text one rune at a time with a randomized inter-key delay.
type Typist struct {
	cfg config.TypingConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTypist creates a typist. A nil rng seeds one from the clock.
func NewTypist(cfg config.TypingConfig, rng *rand.Rand) *Typist {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Typist{cfg: cfg, rng: rng}
}

// Enabled reports whether any delay will be applied.
func (t *Typist) Enabled() bool {
	return t.cfg.Enabled && t.cfg.DelayMean > 0
}

// FocusWait is the pause between focusing a field and the first keystroke.
func (t *Typist) FocusWait() time.Duration {
	if !t.Enabled() {
		return 0
	}
	return t.cfg.FocusWait
}

// Delays returns the pause preceding each rune of text.
func (t *Typist) Delays(text string) []time.Duration {
	runes := []rune(text)
	out := make([]time.Duration, len(runes))
	if !t.Enabled() {
		return out
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range runes {
		d := float64(t.cfg.DelayMean)
		if t.cfg.Jitter > 0 {
			d += (t.rng.Float64()*2 - 1) * float64(t.cfg.Jitter)
		}
		if i > 0 && commonBigrams[string(runes[i-1:i+1])] {
			d *= bigramSpeedup
		}
		if d < 0 {
			d = 0
		}
		out[i] = time.Duration(d)
	}
	return out
}

// Type sends text through send, sleeping the computed delay before each rune.
// It stops early when ctx is done.
func (t *Typist) Type(ctx context.Context, text string, send KeySender) error {
	delays := t.Delays(text)
	for i, r := range []rune(text) {
		if err := Sleep(ctx, delays[i]); err != nil {
			return err
		}
		if err := send(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
