package roles_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benagdipa/fwpm-sub001/internal/roles"
	"github.com/benagdipa/fwpm-sub001/internal/shared"
	"github.com/benagdipa/fwpm-sub001/internal/view"
	_ "github.com/benagdipa/fwpm-sub001/testing"
)

type fixture struct {
	manager  *roles.Manager
	router   chi.Router
	sessions *shared.SessionManager
	sess     *shared.Session
}

func newFixture(t *testing.T, counter roles.UserCounter) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	templates, err := view.NewEngine()
	require.NoError(t, err)

	f := &fixture{
		manager:  roles.NewManager(roles.NewCatalog(roles.DefaultPermissions())),
		sessions: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
	}
	f.sess, err = f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	f.sess.Establish(shared.Identity{UserID: 1, Username: "alice", Role: shared.RoleAdmin}, "tok")

	h := roles.NewHandler(nil, f.manager, templates, shared.NewCSRFManager("csrf"), nil, counter)
	r := chi.NewRouter()
	r.Route("/roles", h.MountRoutes)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), f.sess))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestListShowsSeededRolesWithCounts(t *testing.T) {
	f := newFixture(t, func(*http.Request) (map[string]int, error) {
		return map[string]int{"admin": 3}, nil
	})
	rr := f.do(t, http.MethodGet, "/roles/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "super_admin")
	assert.Contains(t, body, "<td>3</td>")
}

func TestCreateRoleRedirectsWithFlash(t *testing.T) {
	f := newFixture(t, nil)
	before := len(f.manager.List())
	rr := f.do(t, http.MethodPost, "/roles/", url.Values{
		"name": {"auditor"}, "display_name": {"Auditor"}, "permission": {"reports_access"}, "op": {"save"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Len(t, f.manager.List(), before+1)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
}

func TestCreateRoleValidationKeepsList(t *testing.T) {
	f := newFixture(t, nil)
	before := f.manager.List()
	rr := f.do(t, http.MethodPost, "/roles/", url.Values{"name": {""}, "display_name": {"Auditor"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Name and display name are required.")
	assert.Equal(t, before, f.manager.List())
}

func TestCreateRoleRejectsTakenName(t *testing.T) {
	f := newFixture(t, nil)
	before := f.manager.List()
	rr := f.do(t, http.MethodPost, "/roles/", url.Values{"name": {"admin"}, "display_name": {"Second admin"}, "op": {"save"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Another role already uses that name.")
	assert.Equal(t, before, f.manager.List())
}

func TestDraftActionRerendersWithoutSaving(t *testing.T) {
	f := newFixture(t, nil)
	before := len(f.manager.List())
	rr := f.do(t, http.MethodPost, "/roles/", url.Values{"name": {"auditor"}, "display_name": {"Auditor"}, "op": {"select:reports"}})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `value="reports_delete" checked`)
	assert.Contains(t, body, `data-state="all"`)
	assert.Len(t, f.manager.List(), before)
}

func TestDeleteProtectedRoleFlashesError(t *testing.T) {
	f := newFixture(t, nil)
	var adminID int64
	for _, r := range f.manager.List() {
		if r.Name == "admin" {
			adminID = r.ID
		}
	}
	before := f.manager.List()
	rr := f.do(t, http.MethodPost, "/roles/"+strconv.FormatInt(adminID, 10)+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, before, f.manager.List())
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
}
