package themis

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
)

var (
	errNoCandidates     = errors.New("no selectors configured")
	errConditionPending = errors.New("condition not met yet")
)

// firstVisible returns the first candidate selector that becomes visible
// within perAttempt. Exhausting the list is a TimeoutError.
func firstVisible(ctx context.Context, page Page, step string, candidates []string, perAttempt time.Duration) (string, error) {
	if len(candidates) == 0 {
		return "", &TimeoutError{Step: step, Err: errNoCandidates}
	}

	var lastErr error
	for _, selector := range candidates {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		err := page.WaitVisible(attemptCtx, selector)
		cancel()
		if err == nil {
			return selector, nil
		}
		if errors.Is(err, browser.ErrConnectionLost) || errors.Is(err, browser.ErrPageClosed) {
			return "", err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &TimeoutError{Step: step, Selectors: candidates, Err: lastErr}
}

// pollUntil evaluates cond every interval until it holds or timeout elapses.
// Running out of time is not an error: it returns false. Errors from cond
// and cancellation of ctx are returned as is.
func pollUntil(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), pollCtx)
	err := backoff.Retry(func() error {
		ok, err := cond(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil {
				return pollCtx.Err()
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return errConditionPending
		}
		return nil
	}, policy)

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errConditionPending):
		return false, nil
	default:
		return false, err
	}
}
