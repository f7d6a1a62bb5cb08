package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/streamvault/auth-service/internal/media"
	"github.com/streamvault/auth-service/internal/middleware"
	"github.com/streamvault/auth-service/internal/models"
	"github.com/streamvault/auth-service/internal/repo"
	"github.com/streamvault/auth-service/internal/service"
)

type stubUploader struct{}

func (s *stubUploader) Upload(_ context.Context, f media.File) (string, error) {
	return "https://media.test/" + f.Name, nil
}

type testEnv struct {
	e   *echo.Echo
	svc *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	gormRepo := &repo.GormRepo{DB: db}
	svc := &service.AuthService{
		Repo:          gormRepo,
		Uploader:      &stubUploader{},
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc},
		AuthMW:      middleware.NewAuth(gormRepo, svc.AccessSecret),
	})

	return &testEnv{e: e, svc: svc}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func registerForm(t *testing.T, fields map[string]string, withAvatar, withCover bool) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withAvatar {
		part, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	if withCover {
		part, err := mw.CreateFormFile("coverImage", "cover.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (env *testEnv) register(t *testing.T, username string) {
	t.Helper()

	body, contentType := registerForm(t, map[string]string{
		"fullname": "Test User",
		"username": username,
		"email":    username + "@example.com",
		"password": "Secret123",
	}, true, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (env *testEnv) login(t *testing.T, username string) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": "Secret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body, contentType := registerForm(t, map[string]string{
		"fullname": "Test User",
		"username": "Alice",
		"email":    "alice@example.com",
		"password": "Secret123",
	}, true, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	user := resp.Data.(map[string]any)
	assert.Equal(t, "alice", user["username"], "usernames are stored lowercased")
	assert.NotContains(t, rec.Body.String(), "password_hash")
	assert.NotContains(t, rec.Body.String(), "refresh_token")
}

func TestRegisterEndpoint_BlankField(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body, contentType := registerForm(t, map[string]string{
		"fullname": "Test User",
		"username": "",
		"email":    "a@example.com",
		"password": "Secret123",
	}, true, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, resp.Message)
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "dup")

	body, contentType := registerForm(t, map[string]string{
		"fullname": "Test User",
		"username": "dup",
		"email":    "dup@example.com",
		"password": "Secret123",
	}, true, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := env.do(req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestLoginEndpoint_SetsCookiesAndReturnsTokens(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "bob")

	rec := env.login(t, "bob")

	access := cookieValue(rec, "accessToken")
	refresh := cookieValue(rec, "refreshToken")
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, access, data["accessToken"])
	assert.Equal(t, refresh, data["refreshToken"])
}

func TestLoginEndpoint_UnknownUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	payload, _ := json.Marshal(map[string]string{"username": "nobody", "password": "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := env.do(req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshEndpoint_RotatesAndRejectsReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "carol")
	loginRec := env.login(t, "carol")
	r1 := cookieValue(loginRec, "refreshToken")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: r1})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r2 := cookieValue(rec, "refreshToken")
	require.NotEmpty(t, r2)
	assert.NotEqual(t, r1, r2)

	// Replaying the old cookie after rotation is a 401.
	replay := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	replay.AddCookie(&http.Cookie{Name: "refreshToken", Value: r1})
	replayRec := env.do(replay)

	require.Equal(t, http.StatusUnauthorized, replayRec.Code)
	resp := decodeEnvelope(t, replayRec)
	assert.False(t, resp.Success)
	assert.Equal(t, "refresh token expired or already used", resp.Message)
}

func TestRefreshEndpoint_BodyField(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "dave")
	loginRec := env.login(t, "dave")
	r1 := cookieValue(loginRec, "refreshToken")

	payload, _ := json.Marshal(map[string]string{"refreshToken": r1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	rec := env.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing refresh token", decodeEnvelope(t, rec).Message)
}

func TestLogoutEndpoint_ClearsCookiesAndCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "erin")
	loginRec := env.login(t, "erin")
	access := cookieValue(loginRec, "accessToken")
	refresh := cookieValue(loginRec, "refreshToken")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "accessToken" || c.Name == "refreshToken" {
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
		}
	}

	// The refresh token issued before logout is dead.
	replay := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	replay.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	replayRec := env.do(replay)
	require.Equal(t, http.StatusUnauthorized, replayRec.Code)
}

func TestProtectedEndpoint_RequiresAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := env.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "missing token", resp.Message)
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "frank")
	loginRec := env.login(t, "frank")
	access := cookieValue(loginRec, "accessToken")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	user := resp.Data.(map[string]any)
	assert.Equal(t, "frank", user["username"])
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "grace")
	loginRec := env.login(t, "grace")
	access := cookieValue(loginRec, "accessToken")

	payload, _ := json.Marshal(map[string]string{"oldPassword": "wrong", "newPassword": "NewSecret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload, _ = json.Marshal(map[string]string{"oldPassword": "Secret123", "newPassword": "NewSecret123"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUpdateAvatarEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "heidi")
	loginRec := env.login(t, "heidi")
	access := cookieValue(loginRec, "accessToken")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("avatar", "new-avatar.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+access)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeEnvelope(t, rec).Data.(map[string]any)
	assert.Equal(t, "https://media.test/new-avatar.png", user["avatar"])
}
