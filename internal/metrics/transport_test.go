package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInstrumentTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := NewRegistry()
	client := &http.Client{Transport: InstrumentTransport(reg, "cdd", nil)}

	resp, err := client.Get(srv.URL + "/data.csv")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	mf := findFamily(t, reg, "sigsim_http_requests_total")
	if mf == nil {
		t.Fatal("expected sigsim_http_requests_total metric")
	}
	if got := labelValue(mf.GetMetric()[0], "status"); got != "4xx" {
		t.Errorf("expected 4xx, got %s", got)
	}

	inflight := findFamily(t, reg, "sigsim_http_requests_in_flight")
	if v := inflight.GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("expected no requests in flight, got %v", v)
	}
}

func TestInstrumentTransport_Error(t *testing.T) {
	reg := NewRegistry()
	failing := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client := &http.Client{Transport: InstrumentTransport(reg, "binance", failing)}

	if _, err := client.Get("http://example.invalid/"); err == nil {
		t.Fatal("expected transport error")
	}

	mf := findFamily(t, reg, "sigsim_http_requests_total")
	if got := labelValue(mf.GetMetric()[0], "status"); got != "error" {
		t.Errorf("expected error status, got %s", got)
	}
}

func TestLogTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	client := &http.Client{Transport: LogTransport(zap.New(core), nil)}

	resp, err := client.Get(srv.URL + "/klines")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "GET" {
		t.Errorf("expected method GET, got %v", fields["method"])
	}
	if fields["status"] != int64(200) {
		t.Errorf("expected status 200, got %v", fields["status"])
	}
}
