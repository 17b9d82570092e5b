package themis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
)

// Authenticator drives the portal login form.
type Authenticator struct {
	portal       config.PortalConfig
	flow         config.WorkflowConfig
	invalidCreds *regexp.Regexp
	logger       *zap.Logger
}

// NewAuthenticator compiles the invalid-credentials pattern.
func NewAuthenticator(portal config.PortalConfig, flow config.WorkflowConfig, logger *zap.Logger) (*Authenticator, error) {
	re, err := regexp.Compile(portal.InvalidCredentialsPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid portal.invalid_credentials_pattern: %w", err)
	}
	return &Authenticator{
		portal:       portal,
		flow:         flow,
		invalidCreds: re,
		logger:       logger.Named("auth"),
	}, nil
}

// Login signs page into the portal. The portal emits no completion event, so
// success is the URL leaving the login path.
func (a *Authenticator) Login(ctx context.Context, page Page, creds Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return &AuthenticationError{Kind: AuthMissingCredentials}
	}
	sel := a.portal.Selectors
	loginURL := a.portal.URL(a.portal.LoginPath)

	a.logger.Debug("login: Step 1 - opening the login page.", zap.String("url", loginURL))
	if err := page.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	// Tabs of a shared browser share cookies; a live session redirects away
	// from the login page straight away.
	if loc, err := page.Location(ctx); err == nil && !a.onLoginPage(loc) {
		a.logger.Debug("login: session already authenticated.", zap.String("location", loc))
		return nil
	}

	a.logger.Debug("login: Step 2 - locating the username field.")
	userSel, err := firstVisible(ctx, page, "username field", sel.Username, a.flow.SelectorTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		a.logger.Warn("Login form not found; reloading once.", zap.Error(err))
		if err := page.Reload(ctx); err != nil {
			return fmt.Errorf("failed to reload login page: %w", err)
		}
		if userSel, err = firstVisible(ctx, page, "username field", sel.Username, a.flow.SelectorTimeout); err != nil {
			return err
		}
	}

	a.logger.Debug("login: Step 3 - entering credentials.", zap.String("username_selector", userSel))
	if err := page.Type(ctx, userSel, creds.Username); err != nil {
		return fmt.Errorf("failed to type username: %w", err)
	}
	passSel, err := firstVisible(ctx, page, "password field", sel.Password, a.flow.SelectorTimeout)
	if err != nil {
		return err
	}
	if err := page.Type(ctx, passSel, creds.Password); err != nil {
		return fmt.Errorf("failed to type password: %w", err)
	}

	a.logger.Debug("login: Step 4 - submitting.")
	if submitSel, err := firstVisible(ctx, page, "login submit button", sel.Submit, a.flow.SelectorTimeout); err == nil {
		if err := page.Click(ctx, submitSel); err != nil {
			return fmt.Errorf("failed to submit login form: %w", err)
		}
	} else {
		if ctx.Err() != nil {
			return err
		}
		a.logger.Debug("login: no submit button; pressing Enter in the password field.")
		if err := page.PressKey(ctx, KeyEnter); err != nil {
			return fmt.Errorf("failed to submit login form: %w", err)
		}
	}

	a.logger.Debug("login: Step 5 - waiting to leave the login page.")
	left, err := pollUntil(ctx, a.flow.PollInterval, a.flow.LoginTimeout, func(ctx context.Context) (bool, error) {
		loc, err := page.Location(ctx)
		if err != nil {
			return false, err
		}
		return !a.onLoginPage(loc), nil
	})
	if err != nil {
		return fmt.Errorf("failed while waiting for login to complete: %w", err)
	}
	if left {
		a.logger.Info("Logged in to the portal.")
		return nil
	}

	body, err := page.BodyText(ctx)
	if err != nil {
		return &AuthenticationError{Kind: AuthBlocked, Detail: "page text unavailable"}
	}
	if a.invalidCreds.MatchString(body) {
		return &AuthenticationError{Kind: AuthInvalidCredentials}
	}
	return &AuthenticationError{Kind: AuthBlocked}
}

func (a *Authenticator) onLoginPage(location string) bool {
	marker := strings.ToLower(strings.Trim(a.portal.LoginPath, "/"))
	return strings.Contains(strings.ToLower(location), marker)
}
