package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/apeckham/streamlit-assemblyai/internal/session"
)

// handlePage renders the form for the caller's session
func (h *HTTPServer) handlePage(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(w, r)
	h.renderPage(w, r, http.StatusOK, h.sessions.Get(id), nil)
}

// handleTranscribe applies a form submission: the key field and the audio file.
// The request blocks until the transcription finishes or fails.
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(w, r)

	maxBytes := h.config.HTTP.GetMaxUploadBytes()
	if r.ContentLength > maxBytes {
		status, notice := h.formError(&http.MaxBytesError{Limit: maxBytes})
		h.logger.Info("Upload too large",
			slog.String("session", shortID(id)),
			slog.Int64("content_length", r.ContentLength),
		)
		h.renderPage(w, r, status, h.sessions.Get(id), notice)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status, notice := h.formError(err)
		h.logger.Info("Form rejected",
			slog.String("session", shortID(id)),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		h.renderPage(w, r, status, h.sessions.Get(id), notice)
		return
	}
	defer r.MultipartForm.RemoveAll()

	upload, err := readUpload(r)
	if err != nil {
		h.logger.Error("Failed to read upload",
			slog.String("session", shortID(id)),
			slog.String("error", err.Error()),
		)
		h.renderPage(w, r, http.StatusBadRequest, h.sessions.Get(id), &session.Notice{
			Level:   session.NoticeError,
			Message: fmt.Sprintf("An error occurred: %v", err),
		})
		return
	}

	apiKey := r.FormValue("api_key")

	var notice *session.Notice
	state := h.sessions.Update(id, func(s session.State) session.State {
		next, n := h.service.Submit(r.Context(), s, apiKey, upload)
		notice = n
		return next
	})

	h.renderPage(w, r, http.StatusOK, state, notice)
}

// handleClear removes the file and transcript but keeps the key
func (h *HTTPServer) handleClear(w http.ResponseWriter, r *http.Request) {
	id := h.sessionID(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.config.HTTP.GetMaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		status, notice := h.formError(err)
		h.renderPage(w, r, status, h.sessions.Get(id), notice)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	apiKey := r.FormValue("api_key")
	state := h.sessions.Update(id, func(s session.State) session.State {
		next, _ := h.service.Submit(r.Context(), s, apiKey, nil)
		return next
	})

	h.renderPage(w, r, http.StatusOK, state, nil)
}

// handleReset forgets the whole session, key included
func (h *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	name := h.config.Session.CookieName
	if c, err := r.Cookie(name); err == nil && session.ValidID(c.Value) {
		if h.sessions.Remove(c.Value) {
			h.logger.Info("Session reset", slog.String("session", shortID(c.Value)))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// formError maps a form parse failure to a status and a notice
func (h *HTTPServer) formError(err error) (int, *session.Notice) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.metrics.RecordUploadRejected("size")
		return http.StatusRequestEntityTooLarge, &session.Notice{
			Level:   session.NoticeError,
			Message: fmt.Sprintf("The file is larger than the %d MB limit.", h.config.HTTP.MaxUploadMB),
		}
	}
	return http.StatusBadRequest, &session.Notice{
		Level:   session.NoticeError,
		Message: fmt.Sprintf("An error occurred: %v", err),
	}
}

// readUpload returns nil when the file input was left empty
func readUpload(r *http.Request) (*session.Upload, error) {
	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, nil
	}

	var buf bytes.Buffer
	if header.Size > 0 {
		buf.Grow(int(header.Size))
	}
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &session.Upload{Name: header.Filename, Data: buf.Bytes()}, nil
}

// renderPage writes the page for state with an optional one-shot notice
func (h *HTTPServer) renderPage(w http.ResponseWriter, r *http.Request, status int, state session.State, notice *session.Notice) {
	view, err := h.renderer.Build(state, notice, r.URL.Query().Get("api_key"))
	if err != nil {
		h.logger.Error("Failed to build page", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, view); err != nil {
		h.logger.Error("Failed to render page", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	// The page carries the user's key
	header.Set("Cache-Control", "no-store")
	header.Set("Referrer-Policy", "no-referrer")
	header.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// sessionID returns the caller's session id, issuing a new cookie when the
// request has none or carries a malformed one
func (h *HTTPServer) sessionID(w http.ResponseWriter, r *http.Request) string {
	name := h.config.Session.CookieName
	if c, err := r.Cookie(name); err == nil && session.ValidID(c.Value) {
		return c.Value
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Debug("Session cookie issued", slog.String("session", shortID(id)))
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
