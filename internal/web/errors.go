package web

// errors.go turns pipeline errors into HTTP responses.
//
// The technical error is logged with the request id; the client gets the
// core.MapError message as JSON, an HTMX fragment or plain text, depending
// on the request.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// ErrorResponse is the JSON body of an error response. Report is set when
// validation rejected the file; CreatedCount is set, always to zero, when a
// commit failed.
type ErrorResponse struct {
	Error        string             `json:"error"`
	Message      string             `json:"message"`
	Action       string             `json:"action,omitempty"`
	Code         string             `json:"code"`
	CreatedCount *int               `json:"createdCount,omitempty"`
	Report       *core.ImportReport `json:"report,omitempty"`
}

// statusFor maps a pipeline error to its HTTP status.
func statusFor(err error) int {
	var rejected *core.RejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidFormat),
		errors.Is(err, core.ErrMissingHeaders),
		errors.Is(err, core.ErrTooManyRows),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrNotConfirmed),
		errors.Is(err, core.ErrInvalidBatchChoice):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownBatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrPreviewNotFound):
		return http.StatusGone
	case errors.Is(err, core.ErrDuplicateRecord):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, err, core.MapError(err), nil)
}

// respondCommitError reports a failed commit. res is the result Confirm
// returned with the error; when it is nil the commit never started.
func (s *Server) respondCommitError(w http.ResponseWriter, r *http.Request, err error, res *core.CommitResult) {
	if res == nil {
		s.respondError(w, r, err)
		return
	}
	s.writeError(w, r, err, core.MapCommitError(err), &res.CreatedCount)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, msg core.UserMessage, created *int) {
	status := statusFor(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", attrs...)
	} else {
		log.Info("request refused", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	var report *core.ImportReport
	var rejected *core.RejectedError
	if errors.As(err, &rejected) {
		report = &rejected.Report
	}

	switch {
	case isHTMX(r):
		renderHTML(w, r, status, ErrorAlert(msg, report))
	case wantsJSON(r):
		writeJSONStatus(w, status, ErrorResponse{
			Error:        msg.Message,
			Message:      msg.Message,
			Action:       msg.Action,
			Code:         msg.Code,
			CreatedCount: created,
			Report:       report,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes default to it.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent.
		slog.Error("json encode failed", "error", err)
	}
}
