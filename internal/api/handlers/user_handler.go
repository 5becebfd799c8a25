package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/davitr/userhub-be/internal/auth"
	"github.com/davitr/userhub-be/internal/cache"
	"github.com/davitr/userhub-be/internal/models"
	"github.com/davitr/userhub-be/internal/services"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	users       services.UserServiceProvider
	privileges  services.PrivilegeServiceProvider
	events      services.EventServiceProvider
	cache       cache.Cache
	tokens      *auth.Manager
	development bool
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users services.UserServiceProvider, privileges services.PrivilegeServiceProvider, events services.EventServiceProvider, c cache.Cache, tokens *auth.Manager, development bool) *UserHandler {
	return &UserHandler{
		users:       users,
		privileges:  privileges,
		events:      events,
		cache:       c,
		tokens:      tokens,
		development: development,
	}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePayload defines the optional fields of a profile update. Empty
// strings are treated as absent.
type UpdatePayload struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Birthday    string `json:"birthday"`
	Password    string `json:"password"`
	PrivilegeID *int64 `json:"privilege_id"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Username == "" || payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	user, err := h.users.CreateUser(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			writeError(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "Email already taken")
		default:
			log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
			writeInternalError(w, "Error registering user", err, h.development)
		}
		return
	}

	h.invalidateCache(r, user.ID)
	if err := h.events.Record(r.Context(), "user.register", "info", fmt.Sprintf("User '%s' registered.", user.Username), &user.ID); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to record registration event")
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to authenticate user")
		writeInternalError(w, "Error logging in", err, h.development)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to generate JWT")
		writeInternalError(w, "Failed to generate token", err, h.development)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   !h.development,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	public, err := h.users.GetPublicUser(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load user after login")
		writeInternalError(w, "Error logging in", err, h.development)
		return
	}

	if err := h.events.Record(r.Context(), "user.login", "info", fmt.Sprintf("User '%s' logged in.", user.Username), &user.ID); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to record login event")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  public,
	})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No authenticated user")
		return
	}

	user, err := h.users.GetPublicUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to load current user")
		writeInternalError(w, "Error fetching user", err, h.development)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// List returns every account. Admin only, accelerated by a short-TTL
// cached snapshot under the all_users key.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Warn().Msg("No authenticated user in request")
		writeError(w, http.StatusUnauthorized, "No authenticated user")
		return
	}

	isAdmin, err := h.privileges.IsAdmin(r.Context(), claims.PrivilegeID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to resolve caller privilege")
		writeInternalError(w, "Error fetching users", err, h.development)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only admins can view users")
		return
	}

	// First try to get from cache. The cached snapshot is returned
	// verbatim; cache errors fall through to the store.
	if cached, err := h.cache.Get(r.Context(), cache.AllUsersKey); err == nil {
		writeRawJSON(w, http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Msg("Cache read failed, falling back to store")
	}

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error fetching users")
		writeInternalError(w, "Error fetching users", err, h.development)
		return
	}

	body, err := json.Marshal(users)
	if err != nil {
		log.Error().Err(err).Msg("Error encoding users")
		writeInternalError(w, "Error fetching users", err, h.development)
		return
	}

	// Cache for 5 minutes.
	if err := h.cache.Set(r.Context(), cache.AllUsersKey, body, cache.ListingTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache user listing")
	}

	writeRawJSON(w, http.StatusOK, body)
}

// Get retrieves a single account, admin-or-self, through the per-user
// cache key.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No authenticated user")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	isAdmin, err := h.privileges.IsAdmin(r.Context(), claims.PrivilegeID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to resolve caller privilege")
		writeInternalError(w, "Error fetching user", err, h.development)
		return
	}
	if !isAdmin && claims.UserID != id {
		writeError(w, http.StatusForbidden, "Unauthorized to view this user")
		return
	}

	key := cache.UserKey(id)
	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		writeRawJSON(w, http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Msg("Cache read failed, falling back to store")
	}

	user, err := h.users.GetPublicUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int64("target_id", id).Msg("Error fetching user")
		writeInternalError(w, "Error fetching user", err, h.development)
		return
	}

	body, err := json.Marshal(user)
	if err != nil {
		log.Error().Err(err).Int64("target_id", id).Msg("Error encoding user")
		writeInternalError(w, "Error fetching user", err, h.development)
		return
	}

	if err := h.cache.Set(r.Context(), key, body, cache.ListingTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache user")
	}

	writeRawJSON(w, http.StatusOK, body)
}

// Update applies a partial profile update to the target account. The
// caller must be an admin or the account owner; privilege changes are
// admin only and silently ignored otherwise.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No authenticated user")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	isAdmin, err := h.privileges.IsAdmin(r.Context(), claims.PrivilegeID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to resolve caller privilege")
		writeInternalError(w, "Error updating user", err, h.development)
		return
	}
	if !isAdmin && claims.UserID != id {
		writeError(w, http.StatusForbidden, "Unauthorized to update this user")
		return
	}

	var payload UpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := models.UserUpdate{PrivilegeID: payload.PrivilegeID}
	if payload.Username != "" {
		update.Username = &payload.Username
	}
	if payload.Email != "" {
		update.Email = &payload.Email
	}
	if payload.Password != "" {
		update.Password = &payload.Password
	}
	if payload.Birthday != "" {
		birthday, err := parseBirthday(payload.Birthday)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid birthday")
			return
		}
		update.Birthday = &birthday
	}

	user, err := h.users.UpdateUser(r.Context(), id, update, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, services.ErrUsernameTaken):
			writeError(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "Email already taken")
		case errors.Is(err, services.ErrBirthdayInFuture):
			writeError(w, http.StatusBadRequest, "Birthday cannot be in the future")
		case errors.Is(err, services.ErrInvalidPrivilege):
			writeError(w, http.StatusBadRequest, "Invalid privilege")
		default:
			log.Error().Err(err).Int64("target_id", id).Msg("Error updating user")
			writeInternalError(w, "Error updating user", err, h.development)
		}
		return
	}

	h.invalidateCache(r, id)
	if err := h.events.Record(r.Context(), "user.update", "info", fmt.Sprintf("User %d updated the profile of user %d.", claims.UserID, id), &id); err != nil {
		log.Error().Err(err).Int64("target_id", id).Msg("Failed to record update event")
	}

	writeJSON(w, http.StatusOK, user)
}

// invalidateCache drops the listing snapshot and the per-user entry
// after an account write. Failures only log; the store result is
// authoritative and has already been committed.
func (h *UserHandler) invalidateCache(r *http.Request, id int64) {
	if err := h.cache.Delete(r.Context(), cache.AllUsersKey, cache.UserKey(id)); err != nil {
		log.Warn().Err(err).Int64("user_id", id).Msg("Failed to invalidate user cache")
	}
}

// parseBirthday accepts a plain date or a full RFC 3339 timestamp.
func parseBirthday(value string) (time.Time, error) {
	if birthday, err := time.Parse("2006-01-02", value); err == nil {
		return birthday, nil
	}
	return time.Parse(time.RFC3339, value)
}
