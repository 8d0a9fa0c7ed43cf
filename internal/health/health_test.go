package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_Report(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))
	handler.RegisterChecker("redis", NewSimpleChecker("redis", func() error { return nil }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Service != "settlement-service" || report.Version != "v1.0.0" {
		t.Fatalf("unexpected identity: %+v", report)
	}
	if report.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 2 || report.Checks[0].Name != "postgres" || report.Checks[1].Name != "redis" {
		t.Fatalf("checks must be listed sorted by name: %+v", report.Checks)
	}
}

func TestHandler_UnhealthyDependency(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", report.Status)
	}
	if report.Checks[0].Detail != "connection refused" {
		t.Fatalf("check must carry the failure detail: %+v", report.Checks[0])
	}
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected liveness response: %d %q", w.Code, w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewSimpleChecker("postgres", func() error { return nil }))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("unexpected readiness response: %d %q", w.Code, w.Body.String())
	}

	handler.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error {
		return errors.New("broker unreachable")
	}))

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "not ready" {
		t.Fatalf("unhealthy dependency must flip readiness: %d %q", w.Code, w.Body.String())
	}
}

func TestReadinessHandler_DegradedStaysReady(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("cache", checkerFunc(func() Check {
		return Check{Name: "cache", Status: StatusDegraded, Detail: "slow responses"}
	}))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded dependency must not flip readiness, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != StatusDegraded {
		t.Fatalf("report must still show degraded, got %s", report.Status)
	}
}

func TestSimpleChecker(t *testing.T) {
	t.Parallel()

	healthy := NewSimpleChecker("postgres", func() error { return nil })
	if check := healthy.Check(); check.Status != StatusHealthy || check.Name != "postgres" {
		t.Fatalf("unexpected check: %+v", check)
	}

	failing := NewSimpleChecker("postgres", func() error { return errors.New("timeout") })
	check := failing.Check()
	if check.Status != StatusUnhealthy || check.Detail != "timeout" {
		t.Fatalf("unexpected check: %+v", check)
	}
}

// checkerFunc адаптирует функцию к интерфейсу Checker.
type checkerFunc func() Check

func (f checkerFunc) Check() Check { return f() }
