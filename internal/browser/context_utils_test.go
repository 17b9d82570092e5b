// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxKey string

func TestCombineContext(t *testing.T) {
	t.Run("should inherit values from the primary context", func(t *testing.T) {
		primary := context.WithValue(context.Background(), ctxKey("tab"), "target-1")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()
		assert.Equal(t, "target-1", combined.Value(ctxKey("tab")))
	})

	t.Run("should cancel when the secondary context is canceled", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("should cancel when the primary context is canceled", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("should leave the primary context alive after cancel", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		defer cancelPrimary()
		_, cancel := CombineContext(primary, context.Background())
		cancel()
		assert.NoError(t, primary.Err())
	})
}
