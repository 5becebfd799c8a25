package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/davitr/userhub-be/internal/auth"
	"github.com/davitr/userhub-be/internal/cache"
	"github.com/davitr/userhub-be/internal/models"
	"github.com/davitr/userhub-be/internal/services"
)

type fakeUserService struct {
	list      []models.PublicUser
	listErr   error
	listCalls int

	public map[int64]models.PublicUser

	updateResult models.PublicUser
	updateErr    error
	updateCalls  int
	gotUpdateID  int64
	gotUpdate    models.UserUpdate
	gotAsAdmin   bool
}

func (f *fakeUserService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeUserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return models.User{}, services.ErrNotFound
}

func (f *fakeUserService) GetPublicUser(ctx context.Context, id int64) (models.PublicUser, error) {
	user, ok := f.public[id]
	if !ok {
		return models.PublicUser{}, services.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserService) CreateUser(ctx context.Context, username, email, password string) (models.PublicUser, error) {
	return models.PublicUser{}, nil
}

func (f *fakeUserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	return models.User{}, services.ErrInvalidCredentials
}

func (f *fakeUserService) UpdateUser(ctx context.Context, id int64, update models.UserUpdate, callerIsAdmin bool) (models.PublicUser, error) {
	f.updateCalls++
	f.gotUpdateID = id
	f.gotUpdate = update
	f.gotAsAdmin = callerIsAdmin
	return f.updateResult, f.updateErr
}

type fakePrivilegeService struct {
	admin        bool
	adminErr     error
	isAdminCalls int
}

func (f *fakePrivilegeService) GetByID(ctx context.Context, id int64) (models.Privilege, error) {
	return models.Privilege{}, services.ErrNotFound
}

func (f *fakePrivilegeService) GetByName(ctx context.Context, name string) (models.Privilege, error) {
	return models.Privilege{}, services.ErrNotFound
}

func (f *fakePrivilegeService) IsAdmin(ctx context.Context, privilegeID *int64) (bool, error) {
	f.isAdminCalls++
	return f.admin, f.adminErr
}

type fakeEventService struct {
	recorded []string
}

func (f *fakeEventService) Record(ctx context.Context, eventType, level, message string, userID *int64) error {
	f.recorded = append(f.recorded, eventType)
	return nil
}

func (f *fakeEventService) RecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEventService) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeCache struct {
	data     map[string][]byte
	ttls     map[string]time.Duration
	getErr   error
	getCalls int
	setCalls int
	deleted  []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.setCalls++
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

type handlerFixture struct {
	handler    *UserHandler
	users      *fakeUserService
	privileges *fakePrivilegeService
	events     *fakeEventService
	cache      *fakeCache
}

func newFixture(development bool) *handlerFixture {
	users := &fakeUserService{public: make(map[int64]models.PublicUser)}
	privileges := &fakePrivilegeService{}
	events := &fakeEventService{}
	c := newFakeCache()
	return &handlerFixture{
		handler:    NewUserHandler(users, privileges, events, c, auth.NewManager("test-secret"), development),
		users:      users,
		privileges: privileges,
		events:     events,
		cache:      c,
	}
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), auth.UserClaimsKey, claims))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func adminClaims(userID int64) *auth.Claims {
	privilegeID := int64(1)
	return &auth.Claims{UserID: userID, Username: "admin", PrivilegeID: &privilegeID}
}

func decodeError(t *testing.T, body *bytes.Buffer) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &response))
	return response
}

func TestListUnauthenticated(t *testing.T) {
	f := newFixture(true)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil)
	w := httptest.NewRecorder()
	f.handler.List(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "No authenticated user", decodeError(t, w.Body).Error)
	// No store or cache access without an identity.
	require.Zero(t, f.cache.getCalls)
	require.Zero(t, f.users.listCalls)
	require.Zero(t, f.privileges.isAdminCalls)
}

func TestListForbiddenForNonAdmin(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = false

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil), adminClaims(5))
	w := httptest.NewRecorder()
	f.handler.List(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Only admins can view users", decodeError(t, w.Body).Error)
	require.Zero(t, f.users.listCalls)
}

func TestListCacheHitReturnsVerbatim(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	cached := []byte(`[{"id":1,"username":"alice","privilege":"admin"}]`)
	f.cache.data[cache.AllUsersKey] = cached

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil), adminClaims(1))
	w := httptest.NewRecorder()
	f.handler.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, cached, w.Body.Bytes())
	// Cache hits never touch the store.
	require.Zero(t, f.users.listCalls)
}

func TestListCacheMissQueriesStoreAndPopulates(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.list = []models.PublicUser{{ID: 1, Username: "alice", Privilege: "admin"}}

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil), adminClaims(1))
	w := httptest.NewRecorder()
	f.handler.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.users.listCalls)

	// The cached entry matches the response and carries the 300s TTL.
	require.Equal(t, w.Body.Bytes(), f.cache.data[cache.AllUsersKey])
	require.Equal(t, cache.ListingTTL, f.cache.ttls[cache.AllUsersKey])
}

func TestListCacheReadErrorFallsThroughToStore(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.cache.getErr = context.DeadlineExceeded
	f.users.list = []models.PublicUser{{ID: 1, Username: "alice", Privilege: "admin"}}

	r := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/users/", nil), adminClaims(1))
	w := httptest.NewRecorder()
	f.handler.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.users.listCalls)
}

func updateRequest(t *testing.T, targetID int64, claims *auth.Claims, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPut, "/api/v1/users/"+strconv.FormatInt(targetID, 10), bytes.NewReader(body))
	r = withURLParam(r, "id", strconv.FormatInt(targetID, 10))
	if claims != nil {
		r = withClaims(r, claims)
	}
	return r
}

func TestUpdateForbiddenForNonAdminOtherUser(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = false

	// Caller id=5 (non-admin) targets account id=7.
	r := updateRequest(t, 7, adminClaims(5), map[string]string{"username": "new"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Unauthorized to update this user", decodeError(t, w.Body).Error)
	require.Zero(t, f.users.updateCalls)
}

func TestUpdateSelfAllowedForNonAdmin(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = false
	f.users.updateResult = models.PublicUser{ID: 7, Username: "new"}

	r := updateRequest(t, 7, adminClaims(7), map[string]string{"username": "new"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.users.updateCalls)
	require.False(t, f.users.gotAsAdmin)
	require.NotNil(t, f.users.gotUpdate.Username)
	require.Equal(t, "new", *f.users.gotUpdate.Username)
}

func TestUpdateUsernameTaken(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.updateErr = services.ErrUsernameTaken

	r := updateRequest(t, 3, adminClaims(1), map[string]string{"username": "taken"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Username already taken", decodeError(t, w.Body).Error)
	require.Empty(t, f.cache.deleted)
}

func TestUpdateInvalidPrivilege(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.updateErr = services.ErrInvalidPrivilege

	r := updateRequest(t, 3, adminClaims(1), map[string]int64{"privilege_id": 999})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid privilege", decodeError(t, w.Body).Error)
}

func TestUpdateTargetNotFound(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.updateErr = services.ErrNotFound

	r := updateRequest(t, 42, adminClaims(1), map[string]string{"email": "x@example.com"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "User not found", decodeError(t, w.Body).Error)
}

func TestUpdateInvalidBirthdayRejectedBeforeService(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true

	r := updateRequest(t, 3, adminClaims(1), map[string]string{"birthday": "not-a-date"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid birthday", decodeError(t, w.Body).Error)
	require.Zero(t, f.users.updateCalls)
}

func TestUpdateBirthdayInFuture(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.updateErr = services.ErrBirthdayInFuture

	r := updateRequest(t, 3, adminClaims(1), map[string]string{"birthday": "2999-01-01"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Birthday cannot be in the future", decodeError(t, w.Body).Error)
}

func TestUpdateSuccessInvalidatesCacheAndRecordsEvent(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = true
	f.users.updateResult = models.PublicUser{ID: 3, Username: "alice", Email: "new@example.com", Privilege: "user"}
	f.cache.data[cache.AllUsersKey] = []byte("[]")

	r := updateRequest(t, 3, adminClaims(1), map[string]string{"email": "new@example.com", "password": "newpw"})
	w := httptest.NewRecorder()
	f.handler.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	// The service received the merged field set.
	require.Equal(t, int64(3), f.users.gotUpdateID)
	require.True(t, f.users.gotAsAdmin)
	require.NotNil(t, f.users.gotUpdate.Email)
	require.Equal(t, "new@example.com", *f.users.gotUpdate.Email)
	require.NotNil(t, f.users.gotUpdate.Password)

	// Both cache keys are dropped.
	require.Contains(t, f.cache.deleted, cache.AllUsersKey)
	require.Contains(t, f.cache.deleted, cache.UserKey(3))

	// And an audit event is recorded.
	require.Contains(t, f.events.recorded, "user.update")

	// The response never carries a password field.
	require.NotContains(t, w.Body.String(), "password")
}

func TestUpdateInternalErrorDetailDisclosure(t *testing.T) {
	boom := context.DeadlineExceeded

	dev := newFixture(true)
	dev.privileges.admin = true
	dev.users.updateErr = boom

	r := updateRequest(t, 3, adminClaims(1), map[string]string{"email": "x@example.com"})
	w := httptest.NewRecorder()
	dev.handler.Update(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, boom.Error(), decodeError(t, w.Body).Details)

	prod := newFixture(false)
	prod.privileges.admin = true
	prod.users.updateErr = boom

	r = updateRequest(t, 3, adminClaims(1), map[string]string{"email": "x@example.com"})
	w = httptest.NewRecorder()
	prod.handler.Update(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Empty(t, decodeError(t, w.Body).Details)
}

func TestGetForbiddenForNonAdminOtherUser(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = false

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil)
	r = withURLParam(r, "id", "7")
	r = withClaims(r, adminClaims(5))
	w := httptest.NewRecorder()
	f.handler.Get(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Zero(t, f.cache.getCalls)
}

func TestGetSelfPopulatesPerUserCache(t *testing.T) {
	f := newFixture(true)
	f.privileges.admin = false
	f.users.public[7] = models.PublicUser{ID: 7, Username: "bob", Privilege: "user"}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil)
	r = withURLParam(r, "id", "7")
	r = withClaims(r, adminClaims(7))
	w := httptest.NewRecorder()
	f.handler.Get(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, w.Body.Bytes(), f.cache.data[cache.UserKey(7)])
	require.Equal(t, cache.ListingTTL, f.cache.ttls[cache.UserKey(7)])

	// Second read is served from cache without the store.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil)
	r = withURLParam(r, "id", "7")
	r = withClaims(r, adminClaims(7))
	delete(f.users.public, 7)
	f.handler.Get(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}
