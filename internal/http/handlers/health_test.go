package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
)

func TestHealthReportsStack(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	app.Health(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}

	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "healthy" || payload["service"] != "aura" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["storage"] != "fs" || payload["engine"] != "synthetic" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestLiveAlwaysOK(t *testing.T) {
	app, _, _ := newTestApp(t)

	rr := httptest.NewRecorder()
	app.Live(rr, httptest.NewRequest("GET", "/healthz/live", nil))

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
}

func TestReadyReportsQueueRoom(t *testing.T) {
	app, queue, _ := newTestApp(t)
	queue.depth = 3
	queue.capacity = 16

	req := httptest.NewRequest("GET", "/healthz/ready", nil)
	rr := httptest.NewRecorder()

	app.Ready(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	var payload struct {
		Status        string `json:"status"`
		QueueDepth    int    `json:"queue_depth"`
		QueueCapacity int    `json:"queue_capacity"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ready" || payload.QueueDepth != 3 || payload.QueueCapacity != 16 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestReadyRefusesWhenSaturated(t *testing.T) {
	app, queue, _ := newTestApp(t)
	queue.depth = 16
	queue.capacity = 16

	rr := httptest.NewRecorder()
	app.Ready(rr, httptest.NewRequest("GET", "/healthz/ready", nil))

	if rr.Code != 503 {
		t.Fatalf("unexpected status code: got %d, want 503", rr.Code)
	}
	if code, _ := decodeError(t, rr); code != "not_ready" {
		t.Fatalf("error code = %q, want not_ready", code)
	}
}

func TestReadyRefusesWhenStagingMissing(t *testing.T) {
	app, _, _ := newTestApp(t)
	if err := os.RemoveAll(app.Store.StagingDir()); err != nil {
		t.Fatalf("remove staging dir: %v", err)
	}

	rr := httptest.NewRecorder()
	app.Ready(rr, httptest.NewRequest("GET", "/healthz/ready", nil))

	if rr.Code != 503 {
		t.Fatalf("unexpected status code: got %d, want 503", rr.Code)
	}
}
