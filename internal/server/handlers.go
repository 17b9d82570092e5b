package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/api/schemas"
	"github.com/AdeilsonR/puppeteer-themis/internal/themis"
)

const maxBodyBytes int64 = 64 << 10

var errBadBody = errors.New(themis.MsgInvalidBody)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, LivenessMessage)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, schemas.HealthResponse{Status: "ok", Browser: s.browserMode})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req schemas.SearchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	caseID := strings.TrimSpace(req.CaseNumber)
	if caseID == "" {
		s.respondJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: themis.MsgCaseNumberRequired})
		return
	}

	record, err := s.workflow.Search(r.Context(), caseID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := schemas.SearchResponse{CaseNumber: caseID, Result: themis.NoResultMarker}
	if record != nil {
		resp.Result = schemas.CaseRecord{
			Number:     record.Number,
			Type:       record.Type,
			LastUpdate: record.LastUpdate,
			Status:     record.Status,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req schemas.RegisterRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	caseID := strings.TrimSpace(req.CaseNumber)
	if caseID == "" {
		s.respondJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: themis.MsgProcessRequired})
		return
	}

	result, err := s.workflow.Register(r.Context(), caseID, themis.RegistrationPayload{
		Origin:       req.Origin,
		ClaimValue:   req.ClaimValue,
		AccruedValue: req.AccruedValue,
		FutureValue:  req.FutureValue,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, schemas.RegisterResponse{
		CaseNumber: caseID,
		Status:     string(result.Status),
		Message:    result.Message,
	})
}

// decodeJSONBody reads a bounded JSON body into dst. An empty body decodes to
// the zero value so that required-field checks report the missing field.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// respondError maps err to a status and the error payload. Bad input is a
// 400; every workflow failure is a 500 carrying its kind and diagnostic.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *themis.ValidationError
	switch {
	case errors.Is(err, errBadBody):
		s.respondJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: themis.MsgInvalidBody})
	case errors.As(err, &validation):
		s.respondJSON(w, http.StatusBadRequest, schemas.ErrorResponse{Error: validation.Message})
	default:
		kind := themis.ErrorKind(err)
		s.logger.Error("Request failed.",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind),
			zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, schemas.ErrorResponse{
			Error:      err.Error(),
			Kind:       kind,
			Diagnostic: themis.DiagnosticOf(err),
		})
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
