package themis

import (
	"context"
	"fmt"
	"time"

	"github.com/AdeilsonR/puppeteer-themis/internal/humanoid"
)

// FillAutocomplete fills a typeahead field and accepts its first suggestion:
// click, clear, type, let the suggestions render, then ArrowDown + Enter.
func FillAutocomplete(ctx context.Context, page Page, selector, text string, settle time.Duration) error {
	if err := page.Click(ctx, selector); err != nil {
		return fmt.Errorf("autocomplete %q: %w", selector, err)
	}
	if err := page.Clear(ctx, selector); err != nil {
		return fmt.Errorf("autocomplete %q: %w", selector, err)
	}
	if err := page.Type(ctx, selector, text); err != nil {
		return fmt.Errorf("autocomplete %q: %w", selector, err)
	}
	if err := humanoid.Sleep(ctx, settle); err != nil {
		return err
	}
	for _, key := range []string{KeyArrowDown, KeyEnter} {
		if err := page.PressKey(ctx, key); err != nil {
			return fmt.Errorf("autocomplete %q: %w", selector, err)
		}
	}
	return nil
}
