package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalMessages int64    `json:"total_messages"`
	TotalUsers    int64    `json:"total_users"`
	OnlineUsers   []string `json:"online_users"`
	ActiveCalls   int      `json:"active_calls"`
	LastActivity  string   `json:"last_activity"`
}

// Stats returns gateway statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	totalUsers, err := h.store.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	lastActivityTime, err := h.store.LastMessageAt(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastActivityTime != nil {
		lastActivity = formatTimeAgo(*lastActivityTime)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalMessages: totalMessages,
		TotalUsers:    totalUsers,
		OnlineUsers:   h.gw.Registry().Online(),
		ActiveCalls:   h.gw.Calls().ActiveCalls(),
		LastActivity:  lastActivity,
	})
}

// UsersResponse is the online-username set.
type UsersResponse struct {
	Users []string `json:"users"`
}

// OnlineUsers handles GET /api/users.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, UsersResponse{Users: h.gw.Registry().Online()})
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
