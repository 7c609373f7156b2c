package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Checker reports whether a dependency is usable. Optional dependencies
// that are switched off should not be registered.
type Checker interface {
	Ping(ctx context.Context) error
}

type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// Readiness pings every named checker and returns 503 if any fails.
func Readiness(timeout time.Duration, checks map[string]Checker) http.HandlerFunc {
	if timeout <= 0 {
		timeout = time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready", Checks: map[string]string{}}
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[name] = err.Error()
				continue
			}
			out.Checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
