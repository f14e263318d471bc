package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, inspector QueueInspector) (*httptest.ResponseRecorder, queueHealth) {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	var body queueHealth
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestJobsHealthDisabled(t *testing.T) {
	rec, body := serveHealth(t, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, body.Enabled)
	assert.Equal(t, QueueDefault, body.Queue)
}

func TestJobsHealthReportsQueue(t *testing.T) {
	rec, body := serveHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 2, Retry: 1, Archived: 4}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queueHealth{Queue: QueueDefault, Enabled: true, Pending: 2, Retry: 1, Failed: 4}, body)
}

func TestJobsHealthEmptyQueue(t *testing.T) {
	rec, body := serveHealth(t, fakeInspector{err: asynq.ErrQueueNotFound})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Enabled)
	assert.Zero(t, body.Pending)
}

func TestJobsHealthInspectorFailure(t *testing.T) {
	rec, _ := serveHealth(t, fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewWorkerRequiresEmailHandler(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)
}
