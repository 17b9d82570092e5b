package themis

import (
	"context"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
)

// Page is the browser surface the workflow drives. Every method blocks until
// the action settles or ctx ends.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ClickInRow clicks the first visible match of selector inside row and
	// reports whether one was there to click.
	ClickInRow(ctx context.Context, row browser.RowRef, selector string) (bool, error)
	// Clear empties an input using select-all + delete.
	Clear(ctx context.Context, selector string) error
	// Type enters text with per-character pacing.
	Type(ctx context.Context, selector, text string) error
	PressKey(ctx context.Context, key string) error
	SetValue(ctx context.Context, selector, value string) error
	// SelectOption picks the option matching label and reports whether one matched.
	SelectOption(ctx context.Context, selector, label string) (bool, error)
	// DispatchChange fires input and change events on the element.
	DispatchChange(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	// OuterHTML returns "" when nothing matches selector.
	OuterHTML(ctx context.Context, selector string) (string, error)
	CountNodes(ctx context.Context, selector string) (int, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// ClosablePage is a Page owned by one workflow run.
type ClosablePage interface {
	Page
	ID() string
	Close(ctx context.Context) error
}

// PageSource opens a fresh page for every workflow run.
type PageSource interface {
	OpenPage(ctx context.Context) (ClosablePage, error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func(ctx context.Context) (ClosablePage, error)

func (f PageSourceFunc) OpenPage(ctx context.Context) (ClosablePage, error) { return f(ctx) }
