// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 5 * time.Second

const (
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
	statusDraining    = "shutting_down"
)

type Checker interface {
	Ping(ctx context.Context) error
}

// Dependency is a named backing service probed by the readiness check.
// An Optional dependency being down degrades the status without failing it.
type Dependency struct {
	Name     string
	Checker  Checker
	Optional bool
}

type Handler struct {
	deps     []Dependency
	draining atomic.Bool
}

func NewHandler(deps ...Dependency) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// Drain fails both probes from now on so load balancers stop routing here.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.draining.Load() {
		reply(w, http.StatusServiceUnavailable, Report{Status: statusDraining})
		return
	}
	reply(w, http.StatusOK, Report{Status: statusOK})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		reply(w, http.StatusServiceUnavailable, Report{Status: statusDraining})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	report := Report{Status: statusOK, Checks: h.probeAll(ctx)}
	code := http.StatusOK

	for i, c := range report.Checks {
		switch {
		case c.Healthy:
		case h.deps[i].Optional:
			if report.Status == statusOK {
				report.Status = statusDegraded
			}
		default:
			report.Status, code = statusUnavailable, http.StatusServiceUnavailable
		}
	}

	reply(w, code, report)
}

func (h *Handler) probeAll(ctx context.Context) []Check {
	checks := make([]Check, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Go(func() { checks[i] = probe(ctx, dep) })
	}
	wg.Wait()

	return checks
}

func probe(ctx context.Context, dep Dependency) Check {
	if dep.Checker == nil {
		return Check{Name: dep.Name, Message: "not configured"}
	}

	start := time.Now()
	err := dep.Checker.Ping(ctx)

	c := Check{
		Name:    dep.Name,
		Healthy: err == nil,
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}
	if err != nil {
		c.Message = "ping failed"
	}
	return c
}

func reply(w http.ResponseWriter, code int, body Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may be gone
}

// Report is the body of both probes. Liveness never carries checks.
type Report struct {
	Status string  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

type Check struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}
