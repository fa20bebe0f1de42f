package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/askstuart/internal/exchange"
	"github.com/wolfman30/askstuart/pkg/logging"
)

// Handler exposes the panel over HTTP.
type Handler struct {
	panel  *Panel
	logger *logging.Logger
}

// NewHandler creates the admin HTTP handler.
func NewHandler(panel *Panel, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{panel: panel, logger: logger}
}

// Routes returns the admin routes, mounted under /admin.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/messages", h.ListMessages)
	r.Post("/messages/{id}/reply", h.Reply)
	return r
}

// ListMessages returns the dashboard.
// GET /admin/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	d, err := h.panel.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to build admin dashboard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ReplyRequest is the body of a reply.
type ReplyRequest struct {
	Reply string `json:"reply"`
}

// Reply attaches a reply to one record.
// POST /admin/messages/{id}/reply
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	saved, err := h.panel.Reply(r.Context(), id, req.Reply)
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "message not found"})
		return
	case errors.Is(err, exchange.ErrAlreadyAnswered):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "message already answered"})
		return
	case err != nil:
		h.logger.Error("failed to save admin reply", "message_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	case !saved:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reply is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
