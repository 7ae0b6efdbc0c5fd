package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
)

// waitlistPosition is the self-interested caller's view of the queue.
type waitlistPosition struct {
	Position int `json:"position"` // 1-based; 0 = not queued
	Total    int `json:"total"`
}

// JoinWaitlist handles POST /events/{id}/waitlist/join
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	err := h.waitlist.Join(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "You are on the waiting list")
}

// LeaveWaitlist handles POST /events/{id}/waitlist/leave
func (h *Handler) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	err := h.waitlist.Leave(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "You have left the waiting list")
}

// GetWaitlist handles GET /events/{id}/waitlist
// Callers who may administer the event see the whole queue; everyone else
// sees only their own position.
func (h *Handler) GetWaitlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")
	userID := UserID(ctx)

	entries, err := h.waitlist.List(ctx, eventID)
	if err != nil {
		writeVisibilityError(w, err)
		return
	}

	privileged := false
	if userID != "" {
		ok, err := h.perms.CanManageEvent(ctx, userID, eventID, nil)
		if err != nil {
			writeVisibilityError(w, err)
			return
		}
		privileged = ok
	}
	if privileged {
		if entries == nil {
			entries = []model.WaitlistEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	view := waitlistPosition{Total: len(entries)}
	for i, e := range entries {
		if e.UserID == userID {
			view.Position = i + 1
			break
		}
	}
	writeJSON(w, http.StatusOK, view)
}
