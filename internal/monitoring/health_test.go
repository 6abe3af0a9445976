package monitoring

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth(t *testing.T) {
	m := NewMonitor(4)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)

	m.handleHealth(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %q", body["status"])
	}
}

func TestHandleStatus(t *testing.T) {
	m := NewMonitor(4)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)

	m.handleStatus(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if status.Kernels.Threads != 4 {
		t.Errorf("expected 4 threads, got %d", status.Kernels.Threads)
	}
	if len(status.Kernels.Registered) == 0 {
		t.Error("expected registered kernels in status")
	}
	if status.System.NumCPU <= 0 {
		t.Error("expected system info")
	}
}

func TestStopWithoutStart(t *testing.T) {
	m := NewMonitor(1)
	if err := m.Stop(t.Context()); err != nil {
		t.Errorf("stop before start should be a no-op: %v", err)
	}
}
