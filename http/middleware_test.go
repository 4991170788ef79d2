package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSEchoesOrigin(t *testing.T) {
	s := newTestServer(t, &queueEstimator{prices: []float64{2500}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://mandi.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://mandi.example" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
}

func TestCORSSkippedWithoutOrigin(t *testing.T) {
	s := newTestServer(t, &queueEstimator{prices: []float64{2500}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if _, ok := w.Header()["Access-Control-Allow-Origin"]; ok {
		t.Fatal("CORS headers must not be set without an Origin header")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &queueEstimator{prices: []float64{2500}})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "https://mandi.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("preflight missing allow-methods header")
	}
}
