package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boulderhaus/clubhouse/internal/model"
)

// ─── Event administration ─────────────────────────────────────────────────────
//
// Event operations authorize inside the service against the caller's tag
// scope; the routes only require authentication.

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	event, err := h.events.Create(r.Context(), UserID(r.Context()), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	event, err := h.events.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles POST /events/{id}/cancel
// Refunds every paying active attendee and closes all records.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")
	if err := h.events.Authorize(ctx, UserID(ctx), eventID); err != nil {
		writeAdminError(w, err)
		return
	}
	if err := h.attendance.CancelEvent(ctx, eventID); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Event cancelled; attendees refunded")
}

// DeleteEvent handles DELETE /events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.events.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Event deleted")
}

// RefundAttendee handles POST /events/{id}/attendees/{userID}/refund
func (h *Handler) RefundAttendee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")
	if err := h.events.Authorize(ctx, UserID(ctx), eventID); err != nil {
		writeAdminError(w, err)
		return
	}
	if err := h.attendance.RefundAttendee(ctx, eventID, chi.URLParam(r, "userID")); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Attendee refunded")
}

// ─── Tag administration ───────────────────────────────────────────────────────

// CreateTag handles POST /tags
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req model.TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tag, err := h.events.CreateTag(r.Context(), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// UpdateTag handles PUT /tags/{id}
func (h *Handler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var req model.TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tag, err := h.events.UpdateTag(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// DeleteTag handles DELETE /tags/{id}
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Tag deleted")
}

// ─── Ledger administration ────────────────────────────────────────────────────

// GetLedger handles GET /users/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.Entries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetBalance handles GET /users/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.Balance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// AddLedgerEntry handles POST /ledger
func (h *Handler) AddLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var req model.LedgerEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entry, err := h.ledger.Add(r.Context(), req)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteLedgerEntry handles DELETE /ledger/{id}
// Deleting an entry referenced by an attendance record nulls that
// reference in the same transaction.
func (h *Handler) DeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Ledger entry deleted")
}

// ─── Grants ───────────────────────────────────────────────────────────────────

// GrantPermission handles POST /users/{id}/permissions
// Scoped slugs are rejected: they are synthesized, never stored.
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var req model.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.grants.GrantPermission(r.Context(), chi.URLParam(r, "id"), req.Slug); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Permission granted")
}

// RevokePermission handles DELETE /users/{id}/permissions
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	var req model.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.grants.RevokePermission(r.Context(), chi.URLParam(r, "id"), req.Slug); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Permission revoked")
}

// GrantManagedTag handles POST /users/{id}/managed-tags
func (h *Handler) GrantManagedTag(w http.ResponseWriter, r *http.Request) {
	var req model.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.grants.GrantManagedTag(r.Context(), chi.URLParam(r, "id"), req.TagID); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Managed tag granted")
}

// RevokeManagedTag handles DELETE /users/{id}/managed-tags
func (h *Handler) RevokeManagedTag(w http.ResponseWriter, r *http.Request) {
	var req model.GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.grants.RevokeManagedTag(r.Context(), chi.URLParam(r, "id"), req.TagID); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Managed tag revoked")
}

// SetRole handles PUT /users/{id}/role
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID *string `json:"role_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.grants.SetRole(r.Context(), chi.URLParam(r, "id"), req.RoleID); err != nil {
		writeAdminError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Role updated")
}
