package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/service"
)

// ListEvents handles GET /events?from=...&to=...
// Returns the events visible to the caller, sorted by start time.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	to := from.AddDate(0, 0, h.listWindowDays)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = t
	}

	events, err := h.visibility.VisibleEvents(r.Context(), UserID(r.Context()), from, to)
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
// 404 when the event does not exist, 401-style denial when it exists but
// visibility rules exclude the caller.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.visibility.VisibleEvent(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListAttendees handles GET /events/{id}/attendees
// Ordinary callers see the active list; holders of event.history.view get
// the full append-only log including past departures.
func (h *Handler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")

	userID := UserID(ctx)
	full := false
	if userID != "" {
		ok, err := h.perms.HasPermission(ctx, userID, service.PermHistoryView)
		if err != nil {
			writeVisibilityError(w, err)
			return
		}
		full = ok
	}

	var (
		recs []model.AttendanceRecord
		err  error
	)
	if full {
		recs, err = h.attendance.AttendanceHistory(ctx, eventID)
	} else {
		recs, err = h.attendance.ActiveAttendees(ctx, eventID)
	}
	if err != nil {
		writeVisibilityError(w, err)
		return
	}
	if recs == nil {
		recs = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
