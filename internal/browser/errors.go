// internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrManagerClosed is returned once Shutdown has started.
	ErrManagerClosed = errors.New("browser manager is shut down")
	// ErrConnectionLost reports that the DevTools connection dropped while a tab was in use.
	ErrConnectionLost = errors.New("browser connection lost")
	// ErrPageClosed is returned by tab operations after Close.
	ErrPageClosed = errors.New("page is closed")
)

// LaunchError is returned when the browser could not be started within the
// configured number of attempts.
type LaunchError struct {
	Attempts int
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser failed to launch after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsLaunchError reports whether err is or wraps a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}
