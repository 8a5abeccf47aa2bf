package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sokolovdm/socialnet/internal/cache"
	"github.com/sokolovdm/socialnet/internal/middleware"
	"github.com/sokolovdm/socialnet/internal/models"
	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/service"
	"github.com/sokolovdm/socialnet/internal/tokens"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Token{}, &models.Post{}))

	gormRepo := repo.New(db)
	codec := tokens.NewCodec([]byte("test-jwt-secret"), 15*time.Minute, 7*24*time.Hour)

	authSvc := &service.AuthService{Repo: gormRepo, Codec: codec}
	postSvc := &service.PostService{Repo: gormRepo, Cache: cache.NewMemory()}
	userSvc := &service.UserService{Repo: gormRepo}

	guard := &middleware.Guard{Codec: codec, Repo: gormRepo, Svc: authSvc, AllowRefresh: true}

	e := echo.New()
	e.HideBanner = true
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: authSvc},
		PostHandler: &PostHTTP{Svc: postSvc},
		UserHandler: &UserHTTP{Svc: userSvc},
		Guard:       guard,
	})
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_AuthLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	creds := map[string]string{"username": "alice", "password": "Secret123"}

	// Login before registration is rejected.
	rec := doJSON(t, e, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password", decodeBody(t, rec)["message"])

	rec = doJSON(t, e, http.MethodPost, "/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", decodeBody(t, rec)["username"])

	// Duplicate registration conflicts.
	rec = doJSON(t, e, http.MethodPost, "/register", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	loginBody := decodeBody(t, rec)
	access, _ := loginBody["access_token"].(string)
	refresh, _ := loginBody["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	// Token info reflects the stored pair.
	rec = doJSON(t, e, http.MethodGet, "/auth/token-info", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody(t, rec)
	assert.Equal(t, "alice", info["username"])
	assert.Equal(t, access, info["access_token"])
	assert.Equal(t, refresh, info["refresh_token"])

	rec = doJSON(t, e, http.MethodPost, "/logout", access, map[string]string{"access_token": access})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged out", decodeBody(t, rec)["message"])

	// The revoked access token no longer passes the guard.
	rec = doJSON(t, e, http.MethodGet, "/auth/token-info", access, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access token not found", decodeBody(t, rec)["message"])
}

func TestServer_RefreshMintsNewAccessToken(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	creds := map[string]string{"username": "bob", "password": "Secret123"}

	rec := doJSON(t, e, http.MethodPost, "/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	loginBody := decodeBody(t, rec)
	refresh, _ := loginBody["refresh_token"].(string)

	// No bearer: the guard authenticates off the refresh token in the
	// body and surfaces the rotated access token in a header.
	rec = doJSON(t, e, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RotatedTokenHeader))

	newAccess, _ := decodeBody(t, rec)["access_token"].(string)
	require.NotEmpty(t, newAccess)

	// The minted token works as a bearer.
	rec = doJSON(t, e, http.MethodGet, "/auth/token-info", newAccess, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_PostLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	creds := map[string]string{"username": "carol", "password": "Secret123"}

	rec := doJSON(t, e, http.MethodPost, "/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	access, _ := decodeBody(t, rec)["access_token"].(string)

	// Writes require authentication.
	rec = doJSON(t, e, http.MethodPost, "/posts", "", map[string]string{"content": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/posts", access, map[string]string{"content": "hello world"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	postID := int(created["id"].(float64))
	require.NotZero(t, postID)

	// The fresh post is visible in the collection right away.
	rec = doJSON(t, e, http.MethodGet, "/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "hello world", posts[0]["content"])

	rec = doJSON(t, e, http.MethodPatch, "/posts/"+strconv.Itoa(postID), access, map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decodeBody(t, rec)["content"])

	rec = doJSON(t, e, http.MethodGet, "/posts/"+strconv.Itoa(postID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", decodeBody(t, rec)["content"])

	rec = doJSON(t, e, http.MethodDelete, "/posts/"+strconv.Itoa(postID), access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/posts/"+strconv.Itoa(postID), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Post not found", decodeBody(t, rec)["message"])
}

func TestServer_Users(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	creds := map[string]string{"username": "dave", "password": "Secret123"}

	rec := doJSON(t, e, http.MethodPost, "/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "dave", users[0]["username"])

	// The user detail view joins the latest token pair.
	rec = doJSON(t, e, http.MethodGet, "/users/1", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	access, _ := decodeBody(t, rec)["access_token"].(string)

	rec = doJSON(t, e, http.MethodGet, "/users/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dave", decodeBody(t, rec)["username"])

	rec = doJSON(t, e, http.MethodDelete, "/users/1", access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_BadPostID(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
