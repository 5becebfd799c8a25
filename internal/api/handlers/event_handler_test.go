package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventsRequireAuthentication(t *testing.T) {
	handler := NewEventHandler(&fakeEventService{}, &fakePrivilegeService{}, true)

	w := httptest.NewRecorder()
	handler.GetRecent(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventsAdminOnly(t *testing.T) {
	handler := NewEventHandler(&fakeEventService{}, &fakePrivilegeService{admin: false}, true)

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil), adminClaims(5))
	w := httptest.NewRecorder()
	handler.GetRecent(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Only admins can view events", decodeError(t, w.Body).Error)
}

func TestEventsReturnsRecent(t *testing.T) {
	handler := NewEventHandler(&fakeEventService{}, &fakePrivilegeService{admin: true}, true)

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=5", nil), adminClaims(1))
	w := httptest.NewRecorder()
	handler.GetRecent(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}
