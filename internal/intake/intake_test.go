// internal/intake/intake_test.go
//
// End-to-end handler tests against the in-memory store.
//
// Run: go test ./internal/intake -v

package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/adept-intake/internal/ratelimit"
	"github.com/yanizio/adept-intake/internal/requestinfo"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
)

const validContact = `{"name":"Al","email":"A@B.COM","role":"Teacher",` +
	`"painPoint":"Too many tools to juggle daily","consent":true}`

// allowAll never throttles.
type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

// brokenStore fails every call with a detailed driver error.
type brokenStore struct{}

var errDriver = errors.New("dial tcp 10.0.0.5:3306: connection refused (user=intake)")

func (brokenStore) Insert(_ context.Context, table string, _ store.Record) (string, error) {
	return "", &store.StoreError{Op: "insert", Table: table, Err: errDriver}
}
func (brokenStore) Upsert(_ context.Context, table string, _ store.Record, _ string) error {
	return &store.StoreError{Op: "upsert", Table: table, Err: errDriver}
}
func (brokenStore) Ping(context.Context) error { return errDriver }
func (brokenStore) Close() error               { return nil }

func newMemory() *store.Memory {
	return store.NewMemory(store.WithUnique(submission.TableBookings, submission.ConflictExternalEventID))
}

// wrap runs h behind the requestinfo middleware, as the router does.
func wrap(t *testing.T, h http.Handler) http.Handler {
	t.Helper()
	e, err := requestinfo.New("", nil)
	if err != nil {
		t.Fatalf("requestinfo.New: %v", err)
	}
	return e.Middleware(h)
}

func do(h http.Handler, method, path, body string, hdr map[string]string) (*httptest.ResponseRecorder, Envelope) {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func column(t *testing.T, rec store.Record, name string) any {
	t.Helper()
	v, ok := rec.Get(name)
	if !ok {
		t.Fatalf("column %s missing", name)
	}
	return v
}

// -----------------------------------------------------------------------------
// Contact
// -----------------------------------------------------------------------------

func TestContact_StoresNormalizedLead(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewContactHandler(allowAll{}, mem, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/contact?utm_campaign=spring", validContact, nil)

	if w.Code != http.StatusOK || !env.Success || env.ID == "" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	if env.Message != msgContactOK {
		t.Errorf("message = %q", env.Message)
	}

	rows := mem.Rows(submission.TableContacts)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := column(t, rows[0], "email"); got != "a@b.com" {
		t.Errorf("stored email = %v, want a@b.com", got)
	}
	if got := column(t, rows[0], store.ColID); got != env.ID {
		t.Errorf("stored id %v != response id %s", got, env.ID)
	}
	if got := column(t, rows[0], "ip"); got != "203.0.113.7" {
		t.Errorf("ip = %v", got)
	}
	if got := column(t, rows[0], "source"); got != "landing" {
		t.Errorf("source = %v", got)
	}
}

func TestContact_ValidationCollectsAllFields(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewContactHandler(allowAll{}, mem, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/contact", `{"name":"A","email":"nope","consent":false}`, nil)

	if w.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	got := map[string]bool{}
	for _, f := range env.Errors {
		got[f.Name] = true
	}
	for _, want := range []string{"name", "email", "role", "painPoint", "consent"} {
		if !got[want] {
			t.Errorf("missing error for %s in %+v", want, env.Errors)
		}
	}
	if n := len(mem.Rows(submission.TableContacts)); n != 0 {
		t.Errorf("invalid submission persisted %d rows", n)
	}
}

func TestContact_HoneypotIsGeneric(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewContactHandler(allowAll{}, mem, nil, 0))

	body := strings.TrimSuffix(validContact, "}") + `,"company":"Acme Corp"}`
	w, env := do(h, http.MethodPost, "/intake/contact", body, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.Message != msgBot || len(env.Errors) != 0 {
		t.Errorf("honeypot response leaked detail: %+v", env)
	}
	if strings.Contains(w.Body.String(), "company") {
		t.Errorf("body mentions honeypot field: %s", w.Body.String())
	}
	if n := len(mem.Rows(submission.TableContacts)); n != 0 {
		t.Errorf("bot submission persisted")
	}
}

func TestContact_HoneypotBeatsInvalidFields(t *testing.T) {
	h := wrap(t, NewContactHandler(allowAll{}, newMemory(), nil, 0))

	w, env := do(h, http.MethodPost, "/intake/contact", `{"company":"x"}`, nil)
	if w.Code != http.StatusBadRequest || env.Message != msgBot || len(env.Errors) != 0 {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestContact_RateLimitMaxPlusOne(t *testing.T) {
	lim := ratelimit.New("contact_test", time.Minute, 3)
	mem := newMemory()
	h := wrap(t, NewContactHandler(lim, mem, nil, 0))

	for i := 0; i < 3; i++ {
		if w, _ := do(h, http.MethodPost, "/intake/contact", validContact, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, w.Code)
		}
	}
	w, env := do(h, http.MethodPost, "/intake/contact", validContact, nil)
	if w.Code != http.StatusTooManyRequests || env.Message != msgRateLimited {
		t.Fatalf("4th request: status=%d env=%+v", w.Code, env)
	}
	if n := len(mem.Rows(submission.TableContacts)); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}

	// A different client has its own budget.
	w, _ = do(h, http.MethodPost, "/intake/contact", validContact, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	if w.Code != http.StatusOK {
		t.Errorf("other client: status %d", w.Code)
	}
}

func TestContact_StoreFailureIsGeneric(t *testing.T) {
	h := wrap(t, NewContactHandler(allowAll{}, brokenStore{}, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/contact", validContact, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if env.Success || env.Message != contactEndpoint.failedMsg {
		t.Errorf("env = %+v", env)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") || strings.Contains(w.Body.String(), "refused") {
		t.Errorf("driver error leaked: %s", w.Body.String())
	}
}

func TestContact_MethodNotAllowed(t *testing.T) {
	h := wrap(t, NewContactHandler(allowAll{}, newMemory(), nil, 0))

	w, _ := do(h, http.MethodGet, "/intake/contact", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "Method not allowed" || len(body) != 1 {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}

func TestContact_MalformedJSON(t *testing.T) {
	h := wrap(t, NewContactHandler(allowAll{}, newMemory(), nil, 0))

	w, env := do(h, http.MethodPost, "/intake/contact", `{"name":`, nil)
	if w.Code != http.StatusBadRequest || len(env.Errors) != 1 || env.Errors[0].Name != "" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestContact_BodyTooLarge(t *testing.T) {
	h := wrap(t, NewContactHandler(allowAll{}, newMemory(), nil, 32))

	w, _ := do(h, http.MethodPost, "/intake/contact", validContact, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// -----------------------------------------------------------------------------
// Booking
// -----------------------------------------------------------------------------

func webhookBody(eventType string) string {
	return webhookEvent(eventType, "evt_1", "2026-05-01T13:00:00Z", "Principal")
}

// webhookEvent builds a provider callback for event id starting at start.
func webhookEvent(eventType, id, start, role string) string {
	return `{"event_type":"` + eventType + `","payload":{"event":{` +
		`"id":"` + id + `","title":"Intro call",` +
		`"start_time":"` + start + `","end_time":"2026-05-01T13:30:00Z",` +
		`"invitee":{"name":"Cy","email":"Cy@Example.com","timezone":"Europe/Berlin"},` +
		`"answers":[{"question":"Your role","answer":"` + role + `"}]}}}`
}

func TestBooking_DirectIsRequested(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, nil, 0))

	body := `{"name":"Bea","email":"bea@school.edu","slot_start":"2026-05-01T13:00:00Z"}`
	w, env := do(h, http.MethodPost, "/intake/booking", body, nil)

	if w.Code != http.StatusOK || env.ID == "" || env.Message != msgBookingOK {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	rows := mem.Rows(submission.TableBookings)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if got := column(t, rows[0], "status"); got != "requested" {
		t.Errorf("status = %v", got)
	}
}

func TestBooking_WebhookUpsertIsIdempotent(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/booking", webhookBody("booking.created"), nil)
	if w.Code != http.StatusOK || env.Message != msgWebhookOK || env.ID != "" {
		t.Fatalf("created: status=%d env=%+v", w.Code, env)
	}
	first := mem.Rows(submission.TableBookings)[0]

	// Redelivery with a moved slot and a different answer.
	second := webhookEvent("booking.cancelled", "evt_1", "2026-05-02T09:00:00Z", "Vice principal")
	w, _ = do(h, http.MethodPost, "/intake/booking", second, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancelled: status=%d", w.Code)
	}

	rows := mem.Rows(submission.TableBookings)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want exactly one per event id", len(rows))
	}
	if got := column(t, rows[0], "status"); got != "cancelled" {
		t.Errorf("status = %v, want cancelled", got)
	}
	if column(t, rows[0], store.ColID) != column(t, first, store.ColID) {
		t.Errorf("upsert changed the row id")
	}
	if got := column(t, rows[0], "email"); got != "cy@example.com" {
		t.Errorf("email = %v", got)
	}
	if got := column(t, rows[0], "source"); got != "webhook" {
		t.Errorf("source = %v", got)
	}
	wantStart := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	if got, _ := column(t, rows[0], "slot_start").(sql.NullTime); !got.Valid || !got.Time.Equal(wantStart) {
		t.Errorf("slot_start = %+v, want %s", got, wantStart)
	}
	if got, _ := column(t, rows[0], "role").(sql.NullString); got.String != "Vice principal" {
		t.Errorf("role = %+v, want the second call's answer", got)
	}
}

func TestBooking_WebhookEmptyEventIDRejected(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, nil, 0))

	for i := 0; i < 2; i++ {
		w, env := do(h, http.MethodPost, "/intake/booking",
			webhookEvent("booking.created", "", "2026-05-01T13:00:00Z", "Principal"), nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if len(env.Errors) != 1 || env.Errors[0].Name != "payload.event.id" {
			t.Fatalf("errors = %+v", env.Errors)
		}
	}
	if n := len(mem.Rows(submission.TableBookings)); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestBooking_WebhookValidationPaths(t *testing.T) {
	h := wrap(t, NewBookingHandler(allowAll{}, newMemory(), nil, nil, 0))

	body := `{"event_type":"booking.created","payload":{"event":{"id":"evt_2","title":"x",` +
		`"start_time":"2026-05-01T13:00:00Z","end_time":"2026-05-01T13:30:00Z",` +
		`"invitee":{"name":"Cy"},"answers":[{"answer":"a"}]}}}`
	w, env := do(h, http.MethodPost, "/intake/booking", body, nil)

	if w.Code != http.StatusBadRequest || env.Message != bookingEndpoint.invalidMsg {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	got := map[string]bool{}
	for _, f := range env.Errors {
		got[f.Name] = true
	}
	for _, want := range []string{"payload.event.invitee.email", "payload.event.answers.0.question"} {
		if !got[want] {
			t.Errorf("missing %s in %+v", want, env.Errors)
		}
	}
}

func TestBooking_UserAgentSelectsWebhook(t *testing.T) {
	h := wrap(t, NewBookingHandler(allowAll{}, newMemory(), nil, nil, 0))

	// A native-shaped body from Cal.com is validated as a webhook.
	w, env := do(h, http.MethodPost, "/intake/booking", `{"name":"Bea","email":"bea@school.edu"}`,
		map[string]string{"User-Agent": "Cal.com Webhooks/1.0"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	found := false
	for _, f := range env.Errors {
		if f.Name == "event_type" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected webhook schema errors, got %+v", env.Errors)
	}
}

func TestBooking_HoneypotDirectOnly(t *testing.T) {
	mem := newMemory()
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/booking", `{"name":"Bea","email":"bea@school.edu","company":"x"}`, nil)
	if w.Code != http.StatusBadRequest || env.Message != msgBot {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestBooking_SignatureEnforced(t *testing.T) {
	mem := newMemory()
	v := &Verifier{CalComSecret: "s3cret"}
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, v, 0))
	body := webhookBody("booking.created")

	w, env := do(h, http.MethodPost, "/intake/booking", body, map[string]string{HeaderCalComSignature: "deadbeef"})
	if w.Code != http.StatusUnauthorized || env.Message != msgSignature {
		t.Fatalf("bad signature: status=%d env=%+v", w.Code, env)
	}

	w, _ = do(h, http.MethodPost, "/intake/booking", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned generic webhook: status=%d, want 401", w.Code)
	}

	sig := calcomSig("s3cret", body)
	w, _ = do(h, http.MethodPost, "/intake/booking", body, map[string]string{HeaderCalComSignature: sig})
	if w.Code != http.StatusOK {
		t.Fatalf("good signature: status=%d body=%s", w.Code, w.Body.String())
	}
	if n := len(mem.Rows(submission.TableBookings)); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestBooking_SpoofedProviderWithoutSecretRefused(t *testing.T) {
	mem := newMemory()
	v := &Verifier{CalendlySecret: "s3cret"}
	h := wrap(t, NewBookingHandler(allowAll{}, mem, nil, v, 0))

	// Claims to be Cal.com, which has no secret configured, and carries no signature.
	w, env := do(h, http.MethodPost, "/intake/booking", webhookBody("booking.cancelled"),
		map[string]string{"User-Agent": "cal.com"})
	if w.Code != http.StatusUnauthorized || env.Message != msgSignature {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	if n := len(mem.Rows(submission.TableBookings)); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestBooking_StoreFailureIsGeneric(t *testing.T) {
	h := wrap(t, NewBookingHandler(allowAll{}, brokenStore{}, nil, nil, 0))

	w, env := do(h, http.MethodPost, "/intake/booking", webhookBody("booking.created"), nil)
	if w.Code != http.StatusInternalServerError || env.Message != bookingEndpoint.failedMsg {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	if strings.Contains(w.Body.String(), "refused") {
		t.Errorf("driver error leaked: %s", w.Body.String())
	}
}

func TestBooking_RateLimited(t *testing.T) {
	lim := ratelimit.New("booking_test", time.Minute, 1)
	h := wrap(t, NewBookingHandler(lim, newMemory(), nil, nil, 0))

	do(h, http.MethodPost, "/intake/booking", webhookBody("booking.created"), nil)
	w, env := do(h, http.MethodPost, "/intake/booking", webhookBody("booking.created"), nil)
	if w.Code != http.StatusTooManyRequests || env.Success {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestBooking_MethodNotAllowed(t *testing.T) {
	h := wrap(t, NewBookingHandler(allowAll{}, newMemory(), nil, nil, 0))
	if w, _ := do(h, http.MethodPut, "/intake/booking", "{}", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
