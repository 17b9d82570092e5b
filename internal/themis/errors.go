package themis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdeilsonR/puppeteer-themis/internal/browser"
)

// User-facing validation messages.
const (
	MsgCaseNumberRequired = "Número do processo é obrigatório."
	MsgProcessRequired    = "Processo é obrigatório."
	MsgInvalidBody        = "Corpo da requisição inválido."
)

// Stable error kinds reported to API callers.
const (
	KindValidation     = "validation"
	KindAuthentication = "authentication"
	KindTimeout        = "timeout"
	KindLaunch         = "launch"
	KindInternal       = "internal"
)

// ValidationError is a missing or malformed input. No automation runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthFailure distinguishes why a login failed.
type AuthFailure string

const (
	AuthMissingCredentials AuthFailure = "missing_credentials"
	AuthInvalidCredentials AuthFailure = "invalid_credentials"
	AuthBlocked            AuthFailure = "blocked"
)

// AuthenticationError is a login that did not complete. It is never retried.
type AuthenticationError struct {
	Kind   AuthFailure
	Detail string
}

func (e *AuthenticationError) Error() string {
	var msg string
	switch e.Kind {
	case AuthMissingCredentials:
		msg = "credenciais do portal não configuradas"
	case AuthInvalidCredentials:
		msg = "login rejeitado: usuário ou senha inválidos"
	default:
		msg = "login não concluído: acesso bloqueado ou verificação (captcha) exigida"
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// TimeoutError reports a UI control that never appeared.
type TimeoutError struct {
	Step      string
	Selectors []string
	Err       error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for %s", e.Step)
	if len(e.Selectors) > 0 {
		msg += " [" + strings.Join(e.Selectors, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ControlUnavailableError is an expected registration form control that is
// missing or lacks the wanted option. Registration reports it as Skipped.
type ControlUnavailableError struct {
	Control string
	Reason  string
	Err     error
}

func (e *ControlUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("campo %q indisponível: %s", e.Control, e.Reason)
	}
	return fmt.Sprintf("campo %q não encontrado no formulário", e.Control)
}

func (e *ControlUnavailableError) Unwrap() error { return e.Err }

// WorkflowError wraps any failure of a workflow run with the diagnostic
// snapshot captured for it.
type WorkflowError struct {
	Operation  string
	Diagnostic string
	Err        error
}

func (e *WorkflowError) Error() string { return e.Err.Error() }

func (e *WorkflowError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		auth       *AuthenticationError
		timeout    *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &auth):
		return KindAuthentication
	case browser.IsLaunchError(err):
		return KindLaunch
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}

// DiagnosticOf returns the snapshot reference attached to err, if any.
func DiagnosticOf(err error) string {
	var wf *WorkflowError
	if errors.As(err, &wf) {
		return wf.Diagnostic
	}
	return ""
}
