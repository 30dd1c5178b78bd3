package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/gateway"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MessagesResponse is a page of messages, newest first.
type MessagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

// ListMessages handles GET /api/messages with limit/offset pagination.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	msgs, total, err := h.store.ListMessages(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}

	h.JSON(w, http.StatusOK, MessagesResponse{
		Messages: msgs,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// DeleteMessage handles DELETE /api/messages/{id}. A removed message is
// announced to every attached session.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.Error(w, http.StatusBadRequest, "message id is required")
		return
	}

	deleted, err := h.store.DeleteMessage(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}

	if h.redis != nil {
		// Best-effort cache eviction; TTL covers a miss.
		_ = h.redis.RemoveRecent(r.Context(), h.room, id)
	}

	h.gw.Hub().Broadcast(gateway.Event{
		Event: gateway.EventMessageDeleted,
		Data:  gateway.MessageDeletedPayload{ID: id},
	})

	h.JSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
