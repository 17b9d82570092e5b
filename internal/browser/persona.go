// internal/browser/persona.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

const hideWebdriverScript = `Object.defineProperty(Navigator.prototype, "webdriver", { get: () => undefined, configurable: true });`

// applyPersona returns the per-tab emulation overrides for cfg. The user agent
// itself is set on the allocator; only language, locale and timezone are
// needed per target.
func applyPersona(cfg config.PersonaConfig, userAgent string, logger *zap.Logger) chromedp.Action {
	if !cfg.Enabled {
		return chromedp.Tasks{}
	}
	l := logger.Named("persona")
	return chromedp.Tasks{
		setAcceptLanguage(cfg, userAgent, l),
		setEnvironmentOverrides(cfg, l),
		injectWebdriverMask(cfg, l),
	}
}

// acceptLanguage renders languages with descending q-values, floored at 0.7.
func acceptLanguage(languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	formatted := languages[0]
	for i := 1; i < len(languages); i++ {
		q := 1.0 - float64(i)*0.1
		if q < 0.7 {
			q = 0.7
		}
		formatted += fmt.Sprintf(",%s;q=%.1f", languages[i], q)
	}
	return formatted
}

func setAcceptLanguage(cfg config.PersonaConfig, userAgent string, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		header := acceptLanguage(cfg.Languages)
		if header == "" {
			return nil
		}
		if err := network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": header}).Do(ctx); err != nil {
			logger.Error("Failed to set Accept-Language via CDP", zap.Error(err))
			return fmt.Errorf("persona: failed to set extra http headers: %w", err)
		}
		if userAgent != "" {
			override := emulation.SetUserAgentOverride(userAgent).WithAcceptLanguage(header)
			if err := override.Do(ctx); err != nil {
				return fmt.Errorf("persona: failed to set user agent override: %w", err)
			}
		}
		return nil
	})
}

func setEnvironmentOverrides(cfg config.PersonaConfig, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if cfg.TimezoneID != "" {
			if err := emulation.SetTimezoneOverride(cfg.TimezoneID).Do(ctx); err != nil {
				logger.Error("Failed to set timezone override via CDP", zap.Error(err))
				return fmt.Errorf("persona: failed to set timezone: %w", err)
			}
		}
		locale := cfg.Locale
		if locale == "" && len(cfg.Languages) > 0 {
			locale = cfg.Languages[0]
		}
		if locale != "" {
			if err := emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(locale, "_", "-")).Do(ctx); err != nil {
				logger.Error("Failed to set locale override via CDP", zap.Error(err))
				return fmt.Errorf("persona: failed to set locale: %w", err)
			}
		}
		return nil
	})
}

func injectWebdriverMask(cfg config.PersonaConfig, logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if !cfg.HideWebdriver {
			return nil
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx); err != nil {
			logger.Error("Failed to register webdriver mask with CDP", zap.Error(err))
			return fmt.Errorf("persona: failed to add script on new document: %w", err)
		}
		return nil
	})
}
