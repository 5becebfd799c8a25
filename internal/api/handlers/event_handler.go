package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/davitr/userhub-be/internal/auth"
	"github.com/davitr/userhub-be/internal/services"
)

// EventHandler handles HTTP requests for the audit trail.
type EventHandler struct {
	events      services.EventServiceProvider
	privileges  services.PrivilegeServiceProvider
	development bool
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events services.EventServiceProvider, privileges services.PrivilegeServiceProvider, development bool) *EventHandler {
	return &EventHandler{
		events:      events,
		privileges:  privileges,
		development: development,
	}
}

// GetRecent handles the request to get recent audit events. Admin only.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No authenticated user")
		return
	}

	isAdmin, err := h.privileges.IsAdmin(r.Context(), claims.PrivilegeID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to resolve caller privilege")
		writeInternalError(w, "Error fetching events", err, h.development)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only admins can view events")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}

	events, err := h.events.RecentEvents(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		writeInternalError(w, "Error fetching events", err, h.development)
		return
	}

	writeJSON(w, http.StatusOK, events)
}
