// internal/browser/options_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("should run headless and hide automation by default", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: true}, "darwin")
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, false, flags["enable-automation"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.NotContains(t, flags, "no-sandbox")
	})

	t.Run("should disable headless mode", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: false}, "darwin")
		assert.Equal(t, false, flags["headless"])
	})

	t.Run("should add cache flags", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{DisableCache: true}, "darwin")
		assert.Equal(t, "0", flags["disk-cache-size"])
		assert.Equal(t, "0", flags["media-cache-size"])
		assert.Equal(t, true, flags["disable-cache"])
	})

	t.Run("should ignore tls errors when asked", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{IgnoreTLSErrors: true}, "darwin")
		assert.Equal(t, true, flags["ignore-certificate-errors"])
	})

	t.Run("should add sandbox flags on linux", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{}, "linux")
		assert.Equal(t, true, flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-dev-shm-usage"])
		assert.Equal(t, true, flags["disable-setuid-sandbox"])
	})

	t.Run("should parse custom args", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Args: []string{"--single-process", "proxy-server=socks5://127.0.0.1:9050", "  "}}, "darwin")
		assert.Equal(t, true, flags["single-process"])
		assert.Equal(t, "socks5://127.0.0.1:9050", flags["proxy-server"])
		assert.NotContains(t, flags, "")
	})

	t.Run("should let custom args override defaults", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Args: []string{"lang=en-US"}}, "darwin")
		assert.Equal(t, "en-US", flags["lang"])
	})
}

func TestDefaultAllocatorOptions(t *testing.T) {
	base := len(allocatorFlags(config.BrowserConfig{}, "linux"))
	opts := DefaultAllocatorOptions(config.BrowserConfig{ExecPath: "/usr/bin/chromium", UserAgent: "themis", WindowWidth: 800, WindowHeight: 600})
	// Flags, exec path, user agent and window size sit on top of the chromedp defaults.
	assert.GreaterOrEqual(t, len(opts), base+3)
}
