package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/internal/auth"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
	_ "github.com/benagdipa/fwpm-sub001/testing"
)

type loginBackend struct {
	email, password string
}

func (b *loginBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/email-login/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var creds apiclient.Credentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds.Email != b.email || creds.Password != b.password {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":7,"username":"alice","email":"alice@test.local","role":"admin","is_active":true}}`))
}

func newAuthHandler(t *testing.T) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	srv := httptest.NewServer(&loginBackend{email: "alice@test.local", password: "correctpass"})
	t.Cleanup(srv.Close)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	upstream := shared.Upstream{Client: client, Sessions: sessionManager}
	handler := auth.NewHandler(nil, auth.NewService(client.Auth()), upstream, templates, sessionManager, csrfManager)
	return handler, sessionManager
}

// primeSession serves the login page once so the session carries a CSRF token.
func primeSession(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager) *shared.Session {
	t.Helper()
	getReq := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), getReq)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	getCtx := shared.ContextWithSession(getReq.Context(), sess)
	getReq = getReq.WithContext(getCtx)
	getRes := httptest.NewRecorder()
	handler.ShowLoginForTest(getRes, getReq)
	if err := sessionManager.Commit(getCtx, getRes, getReq, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return sess
}

func postLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, sess *shared.Session, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	form.Set("csrf_token", sess.Get(shared.CSRFSessionKey))
	postReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})

	loadedSess, err := sessionManager.Load(context.Background(), postReq)
	if err != nil {
		t.Fatalf("load session for post: %v", err)
	}
	postCtx := shared.ContextWithSession(postReq.Context(), loadedSess)
	postReq = postReq.WithContext(postCtx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, postReq)
	if err := sessionManager.Commit(postCtx, res, postReq, loadedSess); err != nil {
		t.Fatalf("commit session post: %v", err)
	}
	return res, loadedSess
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t)
	sess := primeSession(t, handler, sessionManager)

	if sess.Get(shared.CSRFSessionKey) == "" {
		t.Fatalf("csrf token not set")
	}
}

func TestLoginPageRendersForm(t *testing.T) {
	handler, sessionManager := newAuthHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/auth/login?next=%2Fusers", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
	if !strings.Contains(res.Body.String(), `name="next" value="/users"`) {
		t.Fatalf("expected next path carried in form")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessionManager := newAuthHandler(t)
	sess := primeSession(t, handler, sessionManager)

	res, loaded := postLogin(t, handler, sessionManager, sess, url.Values{
		"email":    {"alice@test.local"},
		"password": {"wrongpass"},
	})

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password.") {
		t.Fatalf("expected error message in response")
	}
	if _, ok := loaded.Identity(); ok {
		t.Fatalf("identity must not be set after failed login")
	}
	if loaded.Get(shared.CSRFSessionKey) == "" {
		t.Fatalf("failed login must keep the anonymous session")
	}
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	handler, sessionManager := newAuthHandler(t)
	sess := primeSession(t, handler, sessionManager)
	oldToken := sess.Get(shared.CSRFSessionKey)

	res, loaded := postLogin(t, handler, sessionManager, sess, url.Values{
		"email":    {"alice@test.local"},
		"password": {"correctpass"},
		"next":     {"/users"},
	})

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/users" {
		t.Fatalf("expected redirect to /users, got %q", loc)
	}
	identity, ok := loaded.Identity()
	if !ok || identity.Username != "alice" || identity.Role != shared.RoleAdmin {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if loaded.Token() != "tok-1" {
		t.Fatalf("token not stored")
	}
	if loaded.Get(shared.CSRFSessionKey) == oldToken {
		t.Fatalf("csrf token must rotate on login")
	}
	if loaded.ID == sess.ID {
		t.Fatalf("session id must rotate on login")
	}
	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionManager.CookieName() {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != loaded.ID {
		t.Fatalf("expected cookie for rotated session, got %+v", cookie)
	}

	staleReq := httptest.NewRequest(http.MethodGet, "/", nil)
	staleReq.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})
	stale, err := sessionManager.Load(context.Background(), staleReq)
	if err != nil {
		t.Fatalf("load stale session: %v", err)
	}
	if stale.Token() != "" {
		t.Fatalf("pre-login session id must not carry the bearer token")
	}
}

func TestLoginRejectsOffsiteNext(t *testing.T) {
	handler, sessionManager := newAuthHandler(t)
	sess := primeSession(t, handler, sessionManager)

	res, _ := postLogin(t, handler, sessionManager, sess, url.Values{
		"email":    {"alice@test.local"},
		"password": {"correctpass"},
		"next":     {"//evil.example/"},
	})
	if loc := res.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
}
