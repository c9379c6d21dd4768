package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/adept-intake/internal/config"
	"github.com/yanizio/adept-intake/internal/intake"
	"github.com/yanizio/adept-intake/internal/requestinfo"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

func newTestRouter(t *testing.T, ready Pinger) (http.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(store.WithUnique(submission.TableBookings, submission.ConflictExternalEventID))
	e, err := requestinfo.New("", nil)
	if err != nil {
		t.Fatalf("requestinfo.New: %v", err)
	}
	if ready == nil {
		ready = mem
	}
	h := NewRouter(config.HTTP{MaxBodyBytes: 1 << 10}, Routes{
		Contact:  intake.NewContactHandler(allowAll{}, mem, nil, 0),
		Booking:  intake.NewBookingHandler(allowAll{}, mem, nil, nil, 0),
		Enricher: e,
		Ready:    ready,
	})
	return h, mem
}

func TestRouterProbes(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	for path, want := range map[string]int{"/healthz": 200, "/readyz": 200, "/metrics": 200, "/nope": 404} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("GET %s = %d, want %d", path, w.Code, want)
		}
	}
}

func TestRouterReadyzFailsWithStore(t *testing.T) {
	h, _ := newTestRouter(t, pingFunc(func(context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRouterIntakeEndpoints(t *testing.T) {
	h, mem := newTestRouter(t, nil)

	body := `{"name":"Al","email":"A@B.COM","role":"Teacher","painPoint":"Too many tools to juggle daily","consent":true}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/intake/contact", strings.NewReader(body))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /intake/contact = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers missing")
	}
	if n := len(mem.Rows(submission.TableContacts)); n != 1 {
		t.Errorf("rows = %d", n)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/intake/booking", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /intake/booking = %d, want 405", w.Code)
	}
}

func TestRouterBodyLimit(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	big := `{"name":"` + strings.Repeat("x", 2<<10) + `"}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/intake/contact", strings.NewReader(big)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	h := NewRouter(config.HTTP{}, Routes{
		Contact: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		Booking: http.NotFoundHandler(),
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/intake/contact", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestNewServerDefaults(t *testing.T) {
	s := New(config.HTTP{ListenAddr: ":0", WriteTimeout: 3 * time.Second}, http.NotFoundHandler())
	if s.ReadTimeout != DefaultReadTimeout || s.WriteTimeout != 3*time.Second || s.IdleTimeout != DefaultIdleTimeout {
		t.Fatalf("unexpected timeouts: %+v", s)
	}
}
