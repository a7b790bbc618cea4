package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// formOverhead is the body allowance for form fields and multipart framing
// on top of the file size limit.
const formOverhead = 64 << 10

// handleTemplate serves the import template workbook.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.Template()
	if err != nil {
		s.respondError(w, r, fmt.Errorf("build template: %w", err))
		return
	}

	w.Header().Set("Content-Type", core.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("template download interrupted", "error", err)
	}
}

// handlePreview parses and validates an uploaded workbook and returns the
// report together with the confirmation token.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	up, cleanup, err := formUpload(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cleanup()

	ctx, req := requestContext(r)
	res, err := s.service.Preview(ctx, req, up, batchChoiceFromForm(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, PreviewView(res))
		return
	}
	writeJSON(w, res)
}

// handleConfirm commits a previewed import. The rows come from the preview
// token or, without a token, from the file uploaded again.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	cr := core.ConfirmRequest{
		Token:     strings.TrimSpace(r.FormValue("token")),
		Confirmed: confirmed(r.FormValue("confirm")),
	}
	if cr.Token == "" {
		up, cleanup, err := formUpload(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer cleanup()
		cr.Upload = &up
		cr.Choice = batchChoiceFromForm(r)
	}

	ctx, req := requestContext(r)
	res, err := s.service.Confirm(ctx, req, cr)
	if err != nil {
		s.respondCommitError(w, r, err, res)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, CommitSummary(res))
		return
	}
	writeJSON(w, res)
}

// handleHealth reports liveness and the import limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// parseForm reads a multipart or urlencoded form, bounding the body by the
// file size limit.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	limit := s.service.Limits().MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case err == nil, errors.Is(err, http.ErrNotMultipart):
		return nil
	case isBodyTooLarge(err):
		return &core.FileTooLargeError{Limit: limit}
	default:
		return fmt.Errorf("%w: unreadable form: %v", core.ErrInvalidFormat, err)
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// formUpload returns the "file" part as a core.Upload. The returned func
// closes the part.
func formUpload(r *http.Request) (core.Upload, func(), error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return core.Upload{}, func() {}, core.ErrNoFile
		}
		return core.Upload{}, func() {}, fmt.Errorf("%w: %v", core.ErrInvalidFormat, err)
	}
	return uploadFrom(file, header), func() { file.Close() }, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) core.Upload {
	return core.Upload{
		Name: header.Filename,
		Size: header.Size,
		Body: file,
	}
}

func batchChoiceFromForm(r *http.Request) core.BatchChoice {
	return core.BatchChoice{
		Mode:        core.BatchMode(r.FormValue("batch_mode")),
		Description: r.FormValue("batch_description"),
		Code:        r.FormValue("batch_code"),
	}
}

// confirmed accepts the usual checkbox and boolean spellings.
func confirmed(v string) bool {
	if strings.EqualFold(strings.TrimSpace(v), "on") {
		return true
	}
	b := core.ToPgBool(v)
	return b.Valid && b.Bool
}

func logRenderError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("render fragment failed", "path", r.URL.Path, "error", err)
}
