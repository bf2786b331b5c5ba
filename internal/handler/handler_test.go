package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/filestore"
	"github.com/sakif/photoshare/internal/handler"
	"github.com/sakif/photoshare/internal/model"
	sqliteRepo "github.com/sakif/photoshare/internal/repository/sqlite"
	"github.com/sakif/photoshare/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

// =========================================================================
// TEST FIXTURE
// =========================================================================

type fixture struct {
	router http.Handler
	db     *sqliteRepo.DB
	files  *filestore.Store
	tokens *auth.TokenService
}

// newFixture wires the real services over an in-memory database and a
// temporary upload directory. withTokens mirrors running with JWT_SECRET set.
func newFixture(t *testing.T, withTokens bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := filestore.New(filepath.Join(t.TempDir(), "uploads"), "uploads")
	require.NoError(t, err)

	var tokens *auth.TokenService
	if withTokens {
		tokens, err = auth.NewTokenService(testSecret, 0)
		require.NoError(t, err)
	}

	accounts := service.NewAccountService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), logger)
	photos := service.NewPhotoService(db, files, logger)

	accountHandler := handler.NewAccountHandler(accounts, tokens, logger)
	photoHandler := handler.NewPhotoHandler(photos, 0, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Post("/register", accountHandler.HandleRegister)
	r.Post("/login", accountHandler.HandleLogin)
	r.Get("/photos/{userId}", photoHandler.HandleList)
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Group(func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireAuth(tokens))
		}
		r.Post("/addphotos", photoHandler.HandleAddPhotos)
	})

	return &fixture{router: r, db: db, files: files, tokens: tokens}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *fixture) register(t *testing.T, email, name, password string) {
	t.Helper()
	rr := f.postJSON("/register", fmt.Sprintf(`{"email":%q,"name":%q,"password":%q}`, email, name, password))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.files.Root())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// uploadRequest builds a multipart /addphotos request with n files under
// the "photos" field.
func uploadRequest(t *testing.T, fields map[string]string, n int) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i := 0; i < n; i++ {
		part, err := mw.CreateFormFile(handler.PhotoField, fmt.Sprintf("img%d.jpg", i))
		require.NoError(t, err)
		fmt.Fprintf(part, "image bytes %d", i)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/addphotos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// =========================================================================
// REGISTER / LOGIN
// =========================================================================

func TestHandleRegister(t *testing.T) {
	f := newFixture(t, false)

	rr := f.postJSON("/register", `{"email":"a@x.com","name":"Name","password":"secret"}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp handler.MessageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Account created successfully", resp.Message)
}

func TestHandleRegister_Failures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"missing name", `{"email":"b@x.com","password":"secret"}`, "validation_error"},
		{"empty body object", `{}`, "validation_error"},
		{"malformed json", `{"email":`, "validation_error"},
		{"duplicate email", `{"email":"a@x.com","name":"Again","password":"other"}`, "conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.register(t, "a@x.com", "Name", "secret")

			rr := f.postJSON("/register", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandleLogin(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "a@x.com", "Name", "secret")

	rr := f.postJSON("/login", `{"email":"a@x.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "a@x.com", resp["email"])
	assert.Equal(t, "Name", resp["name"])
	assert.NotZero(t, resp["id"])
	assert.NotContains(t, resp, "password")
	assert.NotContains(t, resp, "token", "no token without a secret")
	assert.Empty(t, rr.Result().Cookies())
}

func TestHandleLogin_WrongCredentials(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "a@x.com", "Name", "secret")

	wrongPassword := f.postJSON("/login", `{"email":"a@x.com","password":"nope"}`)
	unknownEmail := f.postJSON("/login", `{"email":"b@x.com","password":"secret"}`)

	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestHandleLogin_IssuesToken(t *testing.T) {
	f := newFixture(t, true)
	f.register(t, "a@x.com", "Name", "secret")

	rr := f.postJSON("/login", `{"email":"a@x.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp handler.LoginResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)

	id, err := f.tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, id)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

// =========================================================================
// UPLOAD / LIST
// =========================================================================

func TestHandleAddPhotos_ThenList(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(uploadRequest(t, map[string]string{"title": "T", "description": "D", "user_id": "7"}, 3))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var up handler.UploadResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&up))
	assert.Equal(t, "Photos uploaded successfully", up.Message)
	assert.NotZero(t, up.ID)
	require.Len(t, up.Paths, 3)
	assert.Len(t, f.storedFiles(t), 3)

	list := f.do(httptest.NewRequest(http.MethodGet, "/photos/7", nil))
	require.Equal(t, http.StatusOK, list.Code)

	var albums []model.Album
	require.NoError(t, json.NewDecoder(list.Body).Decode(&albums))
	require.Len(t, albums, 1)
	assert.Equal(t, "T", albums[0].Title)
	assert.Equal(t, "D", albums[0].Description)
	assert.Equal(t, int64(7), albums[0].UserID)
	assert.Equal(t, up.Paths, albums[0].Paths)
}

func TestHandleAddPhotos_NoFiles(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(uploadRequest(t, map[string]string{"title": "empty", "user_id": "3"}, 0))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var up handler.UploadResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&up))
	assert.NotNil(t, up.Paths)
	assert.Empty(t, up.Paths)
}

func TestHandleAddPhotos_TooManyFiles(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(uploadRequest(t, map[string]string{"user_id": "1"}, model.MaxBatchFiles+1))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.storedFiles(t))

	list := f.do(httptest.NewRequest(http.MethodGet, "/photos/1", nil))
	assert.JSONEq(t, `[]`, list.Body.String())
}

func TestHandleAddPhotos_TooManyFilesRejectedAtExtraPart(t *testing.T) {
	f := newFixture(t, false)

	// The body stops right after the header of the extra part, with no
	// closing boundary. Only a reader that counts parts as they arrive
	// can answer with the batch-size error.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("user_id", "1"))
	for i := 0; i <= model.MaxBatchFiles; i++ {
		part, err := mw.CreateFormFile(handler.PhotoField, fmt.Sprintf("img%d.jpg", i))
		require.NoError(t, err)
		if i < model.MaxBatchFiles {
			fmt.Fprintf(part, "image bytes %d", i)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/addphotos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := f.do(req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Message, fmt.Sprintf("at most %d", model.MaxBatchFiles))
	assert.Empty(t, f.storedFiles(t))
}

func TestHandleAddPhotos_FieldsAfterFiles(t *testing.T) {
	f := newFixture(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(handler.PhotoField, "first.png")
	require.NoError(t, err)
	part.Write([]byte("png"))
	require.NoError(t, mw.WriteField("title", "late"))
	require.NoError(t, mw.WriteField("user_id", "5"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/addphotos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := f.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	list := f.do(httptest.NewRequest(http.MethodGet, "/photos/5", nil))
	var albums []model.Album
	require.NoError(t, json.NewDecoder(list.Body).Decode(&albums))
	require.Len(t, albums, 1)
	assert.Equal(t, "late", albums[0].Title)
	require.Len(t, albums[0].Paths, 1)
	assert.True(t, strings.HasSuffix(albums[0].Paths[0], ".png"), albums[0].Paths[0])
}

func TestHandleAddPhotos_BadUserID(t *testing.T) {
	for _, userID := range []string{"", "abc", "0", "-4"} {
		t.Run("user_id="+userID, func(t *testing.T) {
			f := newFixture(t, false)
			fields := map[string]string{"title": "T"}
			if userID != "" {
				fields["user_id"] = userID
			}

			rr := f.do(uploadRequest(t, fields, 1))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decodeError(t, rr).Error)
			assert.Empty(t, f.storedFiles(t))
		})
	}
}

func TestHandleAddPhotos_UnexpectedFileField(t *testing.T) {
	f := newFixture(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("user_id", "1"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	part.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/addphotos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.storedFiles(t))
}

func TestHandleAddPhotos_NotMultipart(t *testing.T) {
	f := newFixture(t, false)

	rr := f.postJSON("/addphotos", `{"user_id":1}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleAddPhotos_TokenRequired(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(uploadRequest(t, map[string]string{"user_id": "1"}, 1))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, f.storedFiles(t))
}

func TestHandleAddPhotos_TokenOwnerMustMatch(t *testing.T) {
	f := newFixture(t, true)
	token, err := f.tokens.Generate(1)
	require.NoError(t, err)

	t.Run("other account", func(t *testing.T) {
		req := uploadRequest(t, map[string]string{"user_id": "2"}, 1)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := f.do(req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "forbidden", decodeError(t, rr).Error)
		assert.Empty(t, f.storedFiles(t))
	})

	t.Run("own account", func(t *testing.T) {
		req := uploadRequest(t, map[string]string{"user_id": "1"}, 1)
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: token})
		rr := f.do(req)

		assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})
}

func TestHandleList_Empty(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/photos/42", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandleList_BadID(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/photos/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleList_StoreFailure(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.db.Close())

	rr := f.do(httptest.NewRequest(http.MethodGet, "/photos/1", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "store_error", resp.Error)
	assert.Equal(t, "database error", resp.Message)
}

// =========================================================================
// HEALTH
// =========================================================================

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	require.NoError(t, f.db.Close())

	rr = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
