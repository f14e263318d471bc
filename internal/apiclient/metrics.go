package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Site is a radio site known to the network performance backend.
type Site struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Status string `json:"status,omitempty"`
}

// MetricSample is one row of LTE or NR KPIs. Columns vary by technology.
type MetricSample map[string]any

// MetricsQuery narrows a KPI fetch.
type MetricsQuery struct {
	Site string
	From time.Time
	To   time.Time
}

func (q MetricsQuery) encode() string {
	values := url.Values{}
	if q.Site != "" {
		values.Set("site", q.Site)
	}
	if !q.From.IsZero() {
		values.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		values.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// BackendConnection describes the metrics database the backend should attach to.
type BackendConnection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConnectionStatus is returned by ConnectToBackend.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
}

// DashboardSummary holds the fleet-wide headline KPIs.
type DashboardSummary struct {
	TotalSites        int     `json:"total_sites"`
	ActiveAlarms      int     `json:"active_alarms"`
	AvgThroughputMbps float64 `json:"avg_throughput_mbps"`
	Availability      float64 `json:"availability"`
}

// MetricsAPI groups network performance calls.
type MetricsAPI struct {
	c *Client
}

// Metrics returns the network performance call group.
func (c *Client) Metrics() MetricsAPI {
	return MetricsAPI{c: c}
}

// FetchSites lists sites.
func (m MetricsAPI) FetchSites(ctx context.Context) ([]Site, error) {
	var out list[Site]
	if err := m.c.Request(ctx, http.MethodGet, "/network-performance/sites/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectToBackend asks the backend to attach a metrics source.
func (m MetricsAPI) ConnectToBackend(ctx context.Context, conn BackendConnection) (ConnectionStatus, error) {
	var out ConnectionStatus
	err := m.c.Request(ctx, http.MethodPost, "/network-performance/connect/", conn, &out)
	return out, err
}

// FetchLteMetrics returns LTE KPI rows.
func (m MetricsAPI) FetchLteMetrics(ctx context.Context, q MetricsQuery) ([]MetricSample, error) {
	var out list[MetricSample]
	if err := m.c.Request(ctx, http.MethodGet, "/network-performance/lte-metrics/"+q.encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchNrMetrics returns 5G NR KPI rows.
func (m MetricsAPI) FetchNrMetrics(ctx context.Context, q MetricsQuery) ([]MetricSample, error) {
	var out list[MetricSample]
	if err := m.c.Request(ctx, http.MethodGet, "/network-performance/nr-metrics/"+q.encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDashboardSummary returns the headline KPIs.
func (m MetricsAPI) FetchDashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := m.c.Request(ctx, http.MethodGet, "/network-performance/dashboard-summary/", nil, &out)
	return out, err
}
