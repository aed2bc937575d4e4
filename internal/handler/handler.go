// Package handler exposes the session controller as a JSON API: the
// presentation layer reads the session snapshot and posts commands, nothing
// more. It also serves the embedded chat page.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/verichat/internal/model"
	"github.com/pavelanni/verichat/internal/sample"
	"github.com/pavelanni/verichat/internal/session"
	"github.com/pavelanni/verichat/internal/verify"
	"github.com/pavelanni/verichat/web"
)

const tabCookieName = "verichat_tab"

// maxUploadSize caps transaction history uploads.
const maxUploadSize = 5 << 20

// Prober is the slice of the transport client used outside the controller:
// the debug panel's session probe and the health check.
type Prober interface {
	SessionStatus(ctx context.Context, sessionID string) (*verify.SessionStatusResponse, error)
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	reg    *session.Registry
	prober Prober
	config model.Config
}

// New creates a new Handler.
func New(reg *session.Registry, prober Prober, cfg model.Config) *Handler {
	return &Handler{reg: reg, prober: prober, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/state", h.handleState)
	r.Post("/api/upload", h.handleUpload)
	r.Post("/api/sample", h.handleSample)
	r.Post("/api/answer", h.handleAnswer)
	r.Post("/api/reset", h.handleReset)
	r.Post("/api/message", h.handleMessage)
	r.Get("/api/debug/session", h.handleDebugSession)
	r.Get("/api/health", h.handleHealth)
	r.Handle("/*", web.SPAHandler())
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// controllerFor binds the request's browser tab to its controller, minting
// a token cookie on first contact.
func (h *Handler) controllerFor(w http.ResponseWriter, r *http.Request) (*session.Controller, error) {
	if cookie, err := r.Cookie(tabCookieName); err == nil && cookie.Value != "" {
		if ctrl, ok := h.reg.Get(cookie.Value); ok {
			return ctrl, nil
		}
	}

	token, ctrl, err := h.reg.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tabCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return ctrl, nil
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("csv_file")
	if err != nil {
		Error(w, http.StatusBadRequest, "csv_file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read csv_file")
		return
	}

	ctrl.SubmitData(session.DataSource{Filename: header.Filename, CSV: data})
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleSample(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	ctrl.SubmitData(session.DataSource{Filename: sample.Filename, CSV: sample.Data()})
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answer == "" {
		Error(w, http.StatusBadRequest, "answer cannot be empty")
		return
	}

	ctrl.SubmitAnswer(req.Answer)
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	ctrl.Reset()
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	var req struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	speaker := model.Speaker(req.Speaker)
	if speaker != model.SpeakerBot && speaker != model.SpeakerUser {
		Error(w, http.StatusBadRequest, "speaker must be bot or user")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text cannot be empty")
		return
	}

	ctrl.AddMessage(speaker, req.Text)
	JSON(w, http.StatusOK, ctrl.Snapshot())
}

// handleDebugSession surfaces the service's own view of the current session
// for the debug panel. Not part of the core flow.
func (h *Handler) handleDebugSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.controllerFor(w, r)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	snap := ctrl.Snapshot()
	if snap.SessionID == "" {
		Error(w, http.StatusBadRequest, "no active verification session")
		return
	}

	status, err := h.prober.SessionStatus(r.Context(), snap.SessionID)
	if err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	upstream := "ok"
	if err := h.prober.Ping(ctx); err != nil {
		upstream = "unreachable"
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok", "upstream": upstream})
}
