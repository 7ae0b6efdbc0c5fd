package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Attend handles POST /events/{id}/attend
// Runs the full eligibility pipeline; the denial message names the first
// failed precondition.
func (h *Handler) Attend(w http.ResponseWriter, r *http.Request) {
	err := h.attendance.Attend(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "You are now attending this event")
}

// LeaveEvent handles POST /events/{id}/leave
// Closes the caller's record, refunds where due, and promotes from the
// waitlist before responding.
func (h *Handler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	err := h.attendance.Leave(r.Context(), chi.URLParam(r, "id"), UserID(r.Context()))
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "You have left this event")
}
