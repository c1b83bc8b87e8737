package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubComponent struct {
	err error
}

func (s *stubComponent) HealthCheck(ctx context.Context) error { return s.err }

func TestCheckAggregatesComponents(t *testing.T) {
	checker := NewChecker(Config{ServiceName: "charger-gateway", ServiceVersion: "test"})
	checker.AddCheck("gateway", &stubComponent{})
	checker.AddCheck("mqtt", &stubComponent{})

	response := checker.Check(context.Background())
	if response.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", response.Status)
	}
	if len(response.Checks) != 2 {
		t.Errorf("len(Checks) = %d, want 2", len(response.Checks))
	}
}

func TestCheckReportsUnhealthyComponent(t *testing.T) {
	checker := NewChecker(Config{ServiceName: "charger-gateway", ServiceVersion: "test"})
	checker.AddCheck("gateway", &stubComponent{})
	checker.AddCheck("mqtt", &stubComponent{err: errors.New("broker unreachable")})

	response := checker.Check(context.Background())
	if response.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", response.Status)
	}
	if response.Checks["mqtt"].Error != "broker unreachable" {
		t.Errorf("mqtt check error = %q", response.Checks["mqtt"].Error)
	}
	if response.Checks["gateway"].Status != "healthy" {
		t.Errorf("gateway check status = %q, want healthy", response.Checks["gateway"].Status)
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	checker := NewChecker(Config{ServiceName: "charger-gateway", ServiceVersion: "test"})
	checker.AddCheck("gateway", &stubComponent{})

	rec := httptest.NewRecorder()
	checker.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status code = %d, want 200", rec.Code)
	}

	checker.AddCheck("mqtt", &stubComponent{err: errors.New("down")})
	rec = httptest.NewRecorder()
	checker.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status code = %d, want 503", rec.Code)
	}
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	checker := NewChecker(Config{ServiceName: "charger-gateway", ServiceVersion: "test"})
	checker.AddCheck("mqtt", &stubComponent{err: errors.New("down")})

	rec := httptest.NewRecorder()
	checker.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status code = %d, want 200", rec.Code)
	}
}
