package themis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
)

const (
	opSearch   = "search"
	opRegister = "register"

	cleanupTimeout = 15 * time.Second
)

// Service runs the portal workflows. Every call opens its own page, logs in,
// performs its steps in order and closes the page on every exit path.
type Service struct {
	pages     PageSource
	auth      *Authenticator
	locator   *CaseLocator
	registrar *Registrar
	diag      *Collector
	creds     Credentials
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService wires the workflow components from cfg.
func NewService(cfg *config.Config, pages PageSource, logger *zap.Logger) (*Service, error) {
	logger = logger.Named("themis")
	auth, err := NewAuthenticator(cfg.Portal, cfg.Workflow, logger)
	if err != nil {
		return nil, err
	}
	locator := NewCaseLocator(cfg.Portal, cfg.Workflow, logger)

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	return &Service{
		pages:     pages,
		auth:      auth,
		locator:   locator,
		registrar: NewRegistrar(cfg.Portal, cfg.Workflow, cfg.Registration, locator, logger),
		diag:      NewCollector(cfg.Diagnostics, logger),
		creds:     Credentials{Username: cfg.Portal.Username, Password: cfg.Portal.Password},
		limiter:   limiter,
		timeout:   cfg.Workflow.RequestTimeout,
		logger:    logger,
	}, nil
}

// Search looks caseID up. A nil record with a nil error means not found.
func (s *Service) Search(ctx context.Context, caseID string) (*CaseRecord, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, &ValidationError{Field: "numeroProcesso", Message: MsgCaseNumberRequired}
	}

	var record *CaseRecord
	err := s.run(ctx, opSearch, caseID, func(ctx context.Context, page Page) (string, error) {
		result, err := s.locator.Search(ctx, page, caseID)
		if err != nil {
			return "", err
		}
		if result == nil {
			return "not_found", nil
		}
		record = &result.Record
		return "found", nil
	})
	return record, err
}

// Register registers caseID using payload when the case is awaiting registration.
func (s *Service) Register(ctx context.Context, caseID string, payload RegistrationPayload) (*RegistrationResult, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, &ValidationError{Field: "processo", Message: MsgProcessRequired}
	}

	var result *RegistrationResult
	err := s.run(ctx, opRegister, caseID, func(ctx context.Context, page Page) (string, error) {
		res, err := s.registrar.Register(ctx, page, caseID, payload)
		if err != nil {
			return "", err
		}
		result = res
		return strings.ToLower(string(res.Status)), nil
	})
	return result, err
}

type workflowFunc func(ctx context.Context, page Page) (outcome string, err error)

func (s *Service) run(ctx context.Context, op, caseID string, fn workflowFunc) error {
	start := time.Now()
	outcome := "error"
	defer func() { observability.ObserveWorkflow(op, outcome, time.Since(start)) }()

	logger := s.logger.With(zap.String("operation", op), zap.String("case", caseID))
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	page, err := s.pages.OpenPage(ctx)
	if err != nil {
		logger.Error("Failed to open a browser page.", zap.Error(err))
		return err
	}
	logger = logger.With(zap.String("page_id", page.ID()))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := page.Close(closeCtx); err != nil {
			logger.Warn("Failed to close page.", zap.Error(err))
		}
	}()

	if err := s.auth.Login(ctx, page, s.creds); err != nil {
		return s.fail(ctx, logger, op, page, err)
	}
	result, err := fn(ctx, page)
	if err != nil {
		return s.fail(ctx, logger, op, page, err)
	}
	outcome = result
	logger.Info("Workflow finished.", zap.String("outcome", outcome), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// fail captures a diagnostic snapshot for err and wraps it.
func (s *Service) fail(ctx context.Context, logger *zap.Logger, op string, page Page, err error) error {
	wfErr := &WorkflowError{Operation: op, Err: err}

	diagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	snap, derr := s.diag.Capture(diagCtx, page, op)
	if derr != nil {
		logger.Warn("Diagnostic capture incomplete.", zap.Error(derr))
	}
	wfErr.Diagnostic = snap.Reference()

	logger.Error("Workflow failed.",
		zap.String("kind", ErrorKind(err)),
		zap.String("diagnostic", wfErr.Diagnostic),
		zap.Error(err))
	return wfErr
}
