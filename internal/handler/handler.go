// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/service"
)

// Handler holds all HTTP handlers for the club API.
type Handler struct {
	visibility *service.Visibility
	attendance *service.Attendance
	waitlist   *service.Waitlist
	events     *service.Events
	ledger     *service.Ledger
	grants     *service.Grants
	perms      *service.Permissions

	// listWindowDays bounds the default event listing window when the
	// caller gives no explicit range.
	listWindowDays int
}

// New constructs the handler set.
func New(
	visibility *service.Visibility,
	attendance *service.Attendance,
	waitlist *service.Waitlist,
	events *service.Events,
	ledger *service.Ledger,
	grants *service.Grants,
	perms *service.Permissions,
	listWindowDays int,
) *Handler {
	return &Handler{
		visibility:     visibility,
		attendance:     attendance,
		waitlist:       waitlist,
		events:         events,
		ledger:         ledger,
		grants:         grants,
		perms:          perms,
		listWindowDays: listWindowDays,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.MessageResponse{Message: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps a service error kind to an HTTP status. forbidden differs
// by surface: visibility denials are 401-style, admin denials 403.
func statusFor(err error, forbidden int) int {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return forbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func message(err error) string {
	if service.KindOf(err) == service.KindInternal {
		// Never leak store details to clients.
		return "Something went wrong"
	}
	return err.Error()
}

// writeVisibilityError renders denials on the read/attend surface, where a
// hidden event answers 401 rather than 404 so callers can tell "exists but
// forbidden" from "does not exist".
func writeVisibilityError(w http.ResponseWriter, err error) {
	writeMessage(w, statusFor(err, http.StatusUnauthorized), message(err))
}

// writeAdminError renders denials on the administrative surface.
func writeAdminError(w http.ResponseWriter, err error) {
	writeMessage(w, statusFor(err, http.StatusForbidden), message(err))
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
