package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

func TestReadiness_ReportsFailingCheck(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	bad := CheckFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	rr := httptest.NewRecorder()
	Readiness(time.Second, map[string]Checker{"redis": bad, "codec": ok})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "not_ready" || body.Checks["codec"] != "ok" || !strings.Contains(body.Checks["redis"], "refused") {
		t.Fatalf("body=%+v", body)
	}
}

func TestReadiness_NoChecksIsReady(t *testing.T) {
	rr := httptest.NewRecorder()
	Readiness(0, nil)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}
