package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCounter(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveJob("mail:send", nil)
	metrics.ObserveJob("mail:send", errors.New("smtp down"))

	body := scrape(t, metrics)
	if !strings.Contains(body, `console_jobs_total{status="ok",type="mail:send"} 1`) {
		t.Fatalf("expected ok job counter, got: %s", body)
	}
	if !strings.Contains(body, `console_jobs_total{status="failed",type="mail:send"} 1`) {
		t.Fatalf("expected failed job counter, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "console_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "console_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestObserveUpstream(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveUpstream(http.MethodGet, "/users/", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveUpstream(http.MethodPost, "/users/:id/activate/", 0, time.Second)

	body := scrape(t, metrics)
	if !strings.Contains(body, `console_upstream_requests_total{code="200",method="GET",route="/users/"} 1`) {
		t.Fatalf("expected upstream success, got: %s", body)
	}
	if !strings.Contains(body, `console_upstream_requests_total{code="error",method="POST",route="/users/:id/activate/"} 1`) {
		t.Fatalf("expected transport failure, got: %s", body)
	}
}

func TestWatchSessionsCountsTeardown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	metrics := NewMetrics()
	stop := metrics.WatchSessions(sessions)
	defer stop()

	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.Establish(shared.Identity{UserID: 1, Username: "alice", Role: shared.RoleAdmin}, "tok")
	if err := sessions.Commit(ctx, httptest.NewRecorder(), req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := sessions.Teardown(ctx, sess, shared.ReasonExpired); err != nil {
			t.Fatalf("teardown: %v", err)
		}
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `console_session_events_total{kind="cleared",reason="expired"} 1`) {
		t.Fatalf("expected exactly one teardown, got: %s", body)
	}
	if !strings.Contains(body, `console_session_events_total{kind="established",reason=""} 1`) {
		t.Fatalf("expected one establish event, got: %s", body)
	}
}
