package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestTrackingHandlers(t *testing.T) {
	co, _, _ := newTestCoordinator(newFakeStore("V1"))
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking"), co)

	req := httptest.NewRequest(http.MethodGet, "/tracking/sessions/V1", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before start, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/tracking/V1/start", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %v", err)
	}

	if _, err := co.UpdateLocation(context.Background(), "V1", 0, 0.2); err != nil {
		t.Fatalf("update location: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/tracking/sessions/V1/stats", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status: %v", err)
	}
	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil || stats.Distance <= 0 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/tracking/sessions", nil)
	resp, _ = app.Test(req)
	var sessions []Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil || len(sessions) != 1 {
		t.Fatalf("unexpected sessions %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/tracking/V1/stop", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/tracking/V2/stop", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for untracked vehicle, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/tracking/ghost/start", nil)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown vehicle, got %d", resp.StatusCode)
	}
}
