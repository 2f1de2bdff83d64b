package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"coopledger/internal/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) json(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.json(w, status, errorResponse{Error: message, RequestID: requestID(r.Context())})
}

// decode parses and validates a JSON request body. On failure it writes
// the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.error(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", f.Field(), f.Tag(), f.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// serviceError translates a domain error into an HTTP status using the
// core error taxonomy.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, core.ErrProvider):
		status = http.StatusBadGateway
	case errors.Is(err, core.ErrConsistency):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	s.error(w, r, status, err.Error())
}
