package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
	"github.com/benagdipa/fwpm-sub001/jobs"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	expired  bool
	password string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	expired := b.expired
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/auth/email-login/" {
		var creds apiclient.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != b.password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"bad credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":1,"username":"alice","email":"alice@example.com","role":"admin"}}`))
		return
	}
	if expired || r.Header.Get("Authorization") != "Bearer tok-1" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.Method + " " + r.URL.Path {
	case "GET /api/users/":
		_, _ = w.Write([]byte(`[
			{"id":1,"username":"alice","email":"alice@example.com","first_name":"Alice","role":"admin","is_active":true},
			{"id":2,"username":"bob","email":"bob@example.com","role":"user","is_active":false},
			{"id":3,"username":"erin","email":"erin@example.com","role":"engineer","is_active":true}
		]`))
	case "POST /api/users/2/activate/", "POST /api/users/3/set_role/":
		w.WriteHeader(http.StatusNoContent)
	case "GET /api/implementation-tracker/tasks/":
		_, _ = w.Write([]byte(`[{"id":4,"title":"Swap antenna","site":"SYD-001","status":"open"}]`))
	case "GET /api/wntd/entries/":
		_, _ = w.Write([]byte(`[{"id":8,"site_id":"SYD-001","serial":"SN-42"}]`))
	case "GET /api/network-performance/sites/":
		_, _ = w.Write([]byte(`{"results":[{"id":9,"name":"North Ridge","region":"north","status":"up"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type harness struct {
	backend *fakeBackend
	api     string
	session string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := &fakeBackend{password: "correct-horse"}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return &harness{backend: b, api: srv.URL + "/api", session: filepath.Join(t.TempDir(), "session.yaml")}
}

func (h *harness) run(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--api", h.api, "--session-file", h.session}, args...)
	code := Execute(context.Background(), full, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, apiclient.NewFileStore(h.session).Save("tok-1", apiclient.Profile{ID: 1, Username: "alice", Email: "alice@example.com", Role: "admin"}))
}

func TestLoginStoresSession(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run("correct-horse\n", "login", "--email", "alice@example.com", "--password-stdin")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Signed in as alice (Admin).")

	code, out, _ = h.run("", "whoami")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "alice <alice@example.com>")
	assert.Contains(t, out, "Role: Admin")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("", "login", "--email", "alice@example.com", "--password", "wrong")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "invalid email or password")
	_, err := os.Stat(h.session)
	assert.True(t, os.IsNotExist(err))
}

func TestCommandsRequireSignIn(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("", "users", "list")
	assert.Equal(t, ExitExpired, code)
	assert.Contains(t, errOut, "consolectl login")
	assert.Empty(t, h.backend.Calls())
}

func TestUsersListSearchAndTabs(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	code, out, errOut := h.run("", "users", "list")
	require.Equal(t, ExitOK, code, errOut)
	for _, name := range []string{"alice", "bob", "erin"} {
		assert.Contains(t, out, name)
	}

	code, out, _ = h.run("", "users", "list", "--tab", "inactive")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "bob")
	assert.NotContains(t, out, "erin")

	code, out, _ = h.run("", "--json", "users", "list", "--search", "ERIN")
	require.Equal(t, ExitOK, code)
	var rows []userRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "engineer", rows[0].Role)

	code, _, errOut = h.run("", "users", "list", "--tab", "nobody")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "unknown tab")
}

func TestExpiredSessionIsClearedOnce(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.mu.Lock()
	h.backend.expired = true
	h.backend.mu.Unlock()

	code, _, errOut := h.run("", "users", "list")
	assert.Equal(t, ExitExpired, code)
	assert.Contains(t, errOut, "Session expired")
	_, err := os.Stat(h.session)
	assert.True(t, os.IsNotExist(err))

	code, _, _ = h.run("", "sites", "list")
	assert.Equal(t, ExitExpired, code)
	assert.Len(t, h.backend.Calls(), 1)
}

func TestUsersActivateOnlyTogglesWhenNeeded(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	code, out, _ := h.run("", "users", "activate", "1")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "already activated")

	code, out, _ = h.run("", "users", "activate", "2")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "User bob activated.")
	assert.Equal(t, []string{"GET /api/users/", "GET /api/users/", "POST /api/users/2/activate/"}, h.backend.Calls())
}

func TestUsersSetRoleAndDeleteGuard(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	code, out, _ := h.run("", "users", "set-role", "3", "manager", "--department", "RAN")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "User 3 is now Manager.")

	code, _, errOut := h.run("", "users", "delete", "3")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "--yes")

	code, _, errOut = h.run("", "users", "delete", "abc", "--yes")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "invalid user id")
}

func TestSitesList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	code, out, errOut := h.run("", "sites", "list")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "North Ridge")
}

func TestTrackerCommands(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	code, out, errOut := h.run("", "tasks", "list", "--status", "open")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Swap antenna")
	assert.Contains(t, h.backend.Calls(), "GET /api/implementation-tracker/tasks/")

	code, out, errOut = h.run("", "devices", "list")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "SN-42")
}

type fakeQueueClient struct {
	payloads []jobs.SendEmailPayload
}

func (f *fakeQueueClient) EnqueueSendEmail(_ context.Context, p jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	f.payloads = append(f.payloads, p)
	return &asynq.TaskInfo{ID: "t1", Queue: jobs.QueueDefault}, nil
}

func (f *fakeQueueClient) Close() error { return nil }

type fakeQueueInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeQueueInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func (f fakeQueueInspector) ListRetryTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func (f fakeQueueInspector) Close() error { return nil }

func TestJobsCLI(t *testing.T) {
	client := &fakeQueueClient{}
	c := &JobsCLI{client: client, inspector: fakeQueueInspector{err: asynq.ErrQueueNotFound}}

	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats)

	info, err := c.SendTestEmail(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", info.ID)
	require.Len(t, client.payloads, 1)
	assert.Equal(t, "ops@example.com", client.payloads[0].To)

	c.inspector = fakeQueueInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}}
	stats, err = c.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 1, stats.Retry)
}
