// internal/server/router.go
//
// Root chi router.
//
// Middleware order matters:
//
//  1. RequestID       – every log line and response can be correlated.
//  2. Recoverer       – panics become 500 instead of dropped connections.
//  3. ForceHTTPS      – redirect plain HTTP when http.force_https is on.
//  4. Security        – response hardening headers.
//  5. BodyLimit       – cap request bodies at http.max_body_bytes.
//  6. requestinfo     – client ip, UA, geo, UTM, request-scoped logger.
//
// Probes and /metrics sit on the same router so one listener serves all.

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/adept-intake/internal/config"
	"github.com/yanizio/adept-intake/internal/middleware"
	"github.com/yanizio/adept-intake/internal/requestinfo"
)

// Pinger is the readiness dependency.  store.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes bundles what the router mounts.
type Routes struct {
	Contact  http.Handler
	Booking  http.Handler
	Enricher *requestinfo.Enricher
	Ready    Pinger
}

// NewRouter builds the service's http.Handler.
func NewRouter(cfg config.HTTP, rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ForceHTTPS(cfg.ForceHTTPS))
	r.Use(middleware.Security)
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if rt.Enricher != nil {
		r.Use(rt.Enricher.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyHandler(rt.Ready))
	r.Handle("/metrics", promhttp.Handler())

	// Handlers answer non-POST methods themselves (405 envelope).
	r.Handle("/intake/contact", rt.Contact)
	r.Handle("/intake/booking", rt.Booking)

	return r
}

func readyHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store unavailable"))
				return
			}
		}
		_, _ = w.Write([]byte("ready"))
	}
}
