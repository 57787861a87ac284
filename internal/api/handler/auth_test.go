package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/accounts"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/api/handler"
	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/session"
)

// ── Stub account service ──────────────────────────────────────────────────

type stubAccountSvc struct {
	users  map[string]*accounts.User   // by email
	police map[string]*accounts.Police // by email
	pw     map[string]string
}

func newStubAccountSvc() *stubAccountSvc {
	return &stubAccountSvc{
		users:  make(map[string]*accounts.User),
		police: make(map[string]*accounts.Police),
		pw:     make(map[string]string),
	}
}

func (s *stubAccountSvc) Register(_ context.Context, name, email, password, gender string) (*accounts.User, error) {
	if _, ok := s.users[email]; ok {
		return nil, accounts.ErrDuplicateEmail
	}
	u := &accounts.User{ID: uuid.New(), Name: name, Email: email, Gender: gender, Role: accounts.RoleTourist}
	s.users[email] = u
	s.pw[email] = password
	return u, nil
}

func (s *stubAccountSvc) RegisterPolice(_ context.Context, email, password, department string) (*accounts.Police, error) {
	if _, ok := s.police[email]; ok {
		return nil, accounts.ErrDuplicateEmail
	}
	p := &accounts.Police{ID: uuid.New(), Email: email, Department: department}
	s.police[email] = p
	s.pw["police:"+email] = password
	return p, nil
}

func (s *stubAccountSvc) Login(_ context.Context, email, password string) (*accounts.User, error) {
	u, ok := s.users[email]
	if !ok || s.pw[email] != password {
		return nil, accounts.ErrInvalidCredentials
	}
	return u, nil
}

func (s *stubAccountSvc) LoginPolice(_ context.Context, email, password, department string) (*accounts.Police, error) {
	p, ok := s.police[email]
	if !ok || p.Department != department || s.pw["police:"+email] != password {
		return nil, accounts.ErrInvalidCredentials
	}
	return p, nil
}

func newTestIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	iss, err := session.NewIssuer("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return iss
}

func setupAuthRouter(t *testing.T) (*gin.Engine, *session.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	iss := newTestIssuer(t)
	r := gin.New()
	handler.NewAuthHandler(newStubAccountSvc(), iss, zap.NewNop()).Register(r.Group("/api/v1"))
	return r, iss
}

func postJSON(router http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestRegister_201_setsCookie(t *testing.T) {
	router, iss := setupAuthRouter(t)

	w := postJSON(router, "/api/v1/register", map[string]string{
		"name": "Asha Rao", "email": "asha@example.com", "password": "hunter22", "gender": "female",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	c := sessionCookie(w)
	if c == nil || !c.HttpOnly {
		t.Fatalf("expected httpOnly %s cookie, got %+v", session.CookieName, c)
	}
	claims, err := iss.Verify(c.Value)
	if err != nil {
		t.Fatalf("cookie token invalid: %v", err)
	}
	if claims.Kind != session.KindTourist || claims.Email != "asha@example.com" {
		t.Errorf("claims: %+v", claims)
	}
}

func TestRegister_400_missingFields(t *testing.T) {
	router, _ := setupAuthRouter(t)
	w := postJSON(router, "/api/v1/register", map[string]string{"email": "asha@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRegister_409_duplicate(t *testing.T) {
	router, _ := setupAuthRouter(t)
	body := map[string]string{"name": "A", "email": "a@example.com", "password": "pw", "gender": "f"}
	postJSON(router, "/api/v1/register", body)
	if w := postJSON(router, "/api/v1/register", body); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestLogin_tourist(t *testing.T) {
	router, _ := setupAuthRouter(t)
	postJSON(router, "/api/v1/register", map[string]string{
		"name": "A", "email": "a@example.com", "password": "pw", "gender": "f",
	})

	if w := postJSON(router, "/api/v1/login", map[string]string{"email": "a@example.com", "password": "pw"}); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	} else if sessionCookie(w) == nil {
		t.Error("login did not set the session cookie")
	}

	if w := postJSON(router, "/api/v1/login", map[string]string{"email": "a@example.com", "password": "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", w.Code)
	}
}

func TestLogin_police(t *testing.T) {
	router, iss := setupAuthRouter(t)
	w := postJSON(router, "/api/v1/police-register", map[string]string{
		"email": "desk@dehradun.police.in", "password": "pw", "department": "Dehradun",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("police-register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(router, "/api/v1/login", map[string]string{
		"email": "desk@dehradun.police.in", "password": "pw", "userType": "police",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing department: expected 400, got %d", w.Code)
	}

	w = postJSON(router, "/api/v1/login", map[string]string{
		"email": "desk@dehradun.police.in", "password": "pw", "userType": "police", "policeDepartment": "Dehradun",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("police login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	claims, err := iss.Verify(sessionCookie(w).Value)
	if err != nil || claims.Kind != session.KindPolice {
		t.Errorf("police claims: %+v, %v", claims, err)
	}
}

func TestLogout_expiresCookie(t *testing.T) {
	router, _ := setupAuthRouter(t)
	w := postJSON(router, "/api/v1/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	c := sessionCookie(w)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("expected expired cookie, got %+v", c)
	}
}
