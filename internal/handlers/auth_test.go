package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	if user, err := s.FindByUsername(ctx, identifier); err == nil {
		return user, nil
	}
	return s.FindByEmail(ctx, identifier)
}

func (s *inMemoryUserStore) UpdateProfile(_ context.Context, user models.User) error {
	existing, ok := s.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.Email = user.Email
	existing.FullName = user.FullName
	existing.AvatarURL = user.AvatarURL
	existing.CoverImageURL = user.CoverImageURL
	existing.UpdatedAt = user.UpdatedAt
	s.users[user.ID] = existing
	return nil
}

func (s *inMemoryUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[userID] = user
	return nil
}

type recordingStorage struct {
	saved map[string][]byte
}

func (s *recordingStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[name] = data
	return fmt.Sprintf("https://cdn.example.com/%s", name), nil
}

func newSessionManager(store *inMemoryUserStore, userIDs ...string) *auth.Manager {
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	return auth.NewManager(store, issuer, auth.NewMemoryTokenStore(userIDs...))
}

func registerBody(t *testing.T, fields map[string]string, avatar bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if avatar {
		part, err := writer.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatalf("create avatar part: %v", err)
		}
		if _, err := part.Write([]byte("avatar-bytes")); err != nil {
			t.Fatalf("write avatar: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestAuthHandlerRegister(t *testing.T) {
	store := newInMemoryUserStore()
	storage := &recordingStorage{}
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store), Storage: storage}

	body, contentType := registerBody(t, map[string]string{
		"username": "Alice",
		"email":    "alice@example.com",
		"password": "supersafe",
		"fullName": "Alice Example",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
	if resp.User.Username != "alice" {
		t.Fatalf("expected case-folded username, got %q", resp.User.Username)
	}
	if !strings.Contains(resp.User.AvatarURL, "avatars/") {
		t.Fatalf("expected avatar to be uploaded, got %q", resp.User.AvatarURL)
	}

	stored, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if stored.Password == "supersafe" {
		t.Fatal("stored password is not hashed")
	}

	cookies := rec.Result().Cookies()
	names := map[string]bool{}
	for _, cookie := range cookies {
		names[cookie.Name] = cookie.HttpOnly
	}
	if !names[accessCookieName] || !names[refreshCookieName] {
		t.Fatalf("expected http-only session cookies, got %v", names)
	}
}

func TestAuthHandlerRegisterDuplicate(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store)}

	fields := map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "supersafe",
	}

	body, contentType := registerBody(t, fields, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Register(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first registration failed: %d", rec.Code)
	}

	body, contentType = registerBody(t, fields, false)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestAuthHandlerLoginByEmail(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "carol", Email: "carol@example.com", Password: hashed}
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store, "user-1")}

	body, err := json.Marshal(loginRequest{Identifier: "carol@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
}

func TestAuthHandlerLoginBadPassword(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "carol", Email: "carol@example.com", Password: hashed}
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store, "user-1")}

	body, _ := json.Marshal(loginRequest{Identifier: "carol", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerRefreshRotatesAndRejectsReplay(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "dave", Email: "dave@example.com", Password: hashed}
	manager := newSessionManager(store, "user-1")
	handler := AuthHandler{Users: store, Sessions: manager}

	_, tokens, err := manager.Login(context.Background(), "dave", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected refresh token rotation")
	}

	// Replaying the original token must fail and clear the cookies.
	body, _ = json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d on replay got %d", http.StatusUnauthorized, rec.Code)
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge > 0 {
			t.Fatalf("expected cookies cleared on replay, got %+v", cookie)
		}
	}
}

type failingSessionManager struct {
	err error
}

func (m failingSessionManager) Login(context.Context, string, string) (models.User, models.SessionTokens, error) {
	return models.User{}, models.SessionTokens{}, m.err
}

func (m failingSessionManager) Refresh(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, m.err
}

func (m failingSessionManager) Logout(context.Context, string) error { return m.err }

func TestAuthHandlerRefreshKeepsCookiesOnStoreFailure(t *testing.T) {
	handler := AuthHandler{Sessions: failingSessionManager{err: fmt.Errorf("session store: connection reset")}}

	body, _ := json.Marshal(refreshRequest{RefreshToken: "still-valid-token"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d: %s", http.StatusInternalServerError, rec.Code, rec.Body.String())
	}

	// A transient failure is retryable, so the client keeps its session
	// cookies and can present the same refresh token again.
	if cookies := rec.Result().Cookies(); len(cookies) != 0 {
		t.Fatalf("expected no cookie changes on transient failure, got %+v", cookies)
	}
}

func TestAuthHandlerRefreshFromCookie(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "erin", Email: "erin@example.com", Password: hashed}
	manager := newSessionManager(store, "user-1")
	handler := AuthHandler{Users: store, Sessions: manager}

	_, tokens, err := manager.Login(context.Background(), "erin", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerLogoutInvalidatesSession(t *testing.T) {
	store := newInMemoryUserStore()
	hashed, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.users["user-1"] = models.User{ID: "user-1", Username: "frank", Email: "frank@example.com", Password: hashed}
	manager := newSessionManager(store, "user-1")
	handler := AuthHandler{Users: store, Sessions: manager}

	_, tokens, err := manager.Login(context.Background(), "frank", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(withActor(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
}

func TestAuthHandlerRateLimited(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newSessionManager(store), Limiter: denyAll{}}

	body, _ := json.Marshal(loginRequest{Identifier: "anyone", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }
