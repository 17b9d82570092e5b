// internal/browser/context_utils.go
package browser

import "context"

// CombineContext returns a context that carries the values of primary (the
// chromedp tab) and is canceled when either primary or secondary is done.
// Deadlines and cancellation of request contexts reach chromedp this way
// without losing the CDP target stored in the tab context.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
