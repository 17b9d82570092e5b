// Package themis drives the Themis case management portal: login, case search
// and case registration, one browser page per call.
package themis

import "github.com/AdeilsonR/puppeteer-themis/internal/browser"

// NotInformed fills record fields the result table left blank.
const NotInformed = "Não informado"

// NoResultMarker is returned to callers when a search finds no matching row.
const NoResultMarker = "Nenhum resultado encontrado."

// Named keys understood by Page.PressKey.
const (
	KeyArrowDown = "ArrowDown"
	KeyEnter     = "Enter"
)

// CaseRecord is the structured view of one result table row. Every field is
// always present; missing cells hold NotInformed.
type CaseRecord struct {
	Number     string `json:"numero"`
	Type       string `json:"tipo"`
	LastUpdate string `json:"ultimaAtualizacao"`
	Status     string `json:"status"`
}

// SearchResult is a matched record together with a reference to its rendered
// row, used to address controls inside that row.
type SearchResult struct {
	Record CaseRecord
	Row    browser.RowRef
}

// Credentials for the portal login form.
type Credentials struct {
	Username string
	Password string
}

// RegistrationPayload holds the caller supplied registration values. Empty
// amounts leave the corresponding form field untouched.
type RegistrationPayload struct {
	Origin       string
	ClaimValue   string
	AccruedValue string
	FutureValue  string
}

// RegistrationStatus is the outcome of a registration attempt that did not fail.
type RegistrationStatus string

const (
	StatusCompleted RegistrationStatus = "Completed"
	StatusSkipped   RegistrationStatus = "Skipped"
)

// RegistrationResult reports what Register did and why.
type RegistrationResult struct {
	Status  RegistrationStatus
	Message string
}

func skipped(message string) *RegistrationResult {
	return &RegistrationResult{Status: StatusSkipped, Message: message}
}
