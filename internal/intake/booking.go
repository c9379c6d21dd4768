// internal/intake/booking.go
//
// POST /intake/booking.  One endpoint serves two shapes: direct bookings
// from the landing page (insert, status requested) and scheduling-provider
// webhooks (verify, upsert by external_event_id).

package intake

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/adept-intake/internal/form"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/message"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
)

// Schema IDs for the booking endpoint.
const (
	SchemaBooking = "booking"
	SchemaWebhook = "booking_webhook"
)

const (
	msgBookingOK = "Booking request submitted successfully."
	msgWebhookOK = "Webhook processed successfully."
)

// BookingHandler serves POST /intake/booking.  Direct bookings are
// inserted with status requested.  Provider webhooks are upserted by
// external_event_id so redelivery and cancellation update one row.
type BookingHandler struct {
	common
	verifier *Verifier
}

// NewBookingHandler wires the booking pipeline.  n and v may be nil.
func NewBookingHandler(l Limiter, s store.Store, n *message.Notifier, v *Verifier, maxBodyBytes int64) *BookingHandler {
	return &BookingHandler{
		common:   common{limiter: l, store: s, notifier: n, maxBodyBytes: maxBodyBytes},
		verifier: v,
	}
}

func (h *BookingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ep := bookingEndpoint
	if r.Method != http.MethodPost {
		methodNotAllowed(w, ep)
		return
	}

	meta, body, ok := h.admit(w, r, ep)
	if !ok {
		return
	}

	p := Classify(r, body)
	logger.FromContext(r.Context()).Debugw("booking classified", "provider", p.String())

	switch p {
	case ProviderNative:
		h.direct(w, r, meta, body)
	case ProviderCalCom, ProviderCalendly, ProviderGeneric:
		h.webhook(w, r, p, meta, body)
	default:
		fail(w, r, ep, fmt.Errorf("intake: unhandled provider %v", p))
	}
}

func (h *BookingHandler) direct(w http.ResponseWriter, r *http.Request, meta submission.RequestMeta, body []byte) {
	ep := bookingEndpoint

	in, err := form.Decode[submission.BookingInput](SchemaBooking, body)
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	b := submission.NormalizeBooking(&in, meta)
	id, err := h.store.Insert(r.Context(), submission.TableBookings, b.Record())
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	logger.FromContext(r.Context()).Infow("booking request stored", "id", id)
	h.notify(r, "New booking request: "+b.Name, bookingSummary(id, &b))
	succeed(w, ep, msgBookingOK, id)
}

func (h *BookingHandler) webhook(w http.ResponseWriter, r *http.Request, p Provider, meta submission.RequestMeta, body []byte) {
	ep := bookingEndpoint

	if err := h.verifier.Verify(p, r.Header, body); err != nil {
		fail(w, r, ep, err)
		return
	}

	in, err := form.Decode[submission.WebhookInput](SchemaWebhook, body)
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	b := submission.NormalizeWebhook(&in, meta)
	err = h.store.Upsert(r.Context(), submission.TableBookings, b.Record(), submission.ConflictExternalEventID)
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	logger.FromContext(r.Context()).Infow("webhook processed",
		"provider", p.String(),
		"event_type", in.EventType,
		"event_id", b.ExternalEventID.String,
		"status", string(b.Status),
	)
	succeed(w, ep, msgWebhookOK, "")
}

func bookingSummary(id string, b *submission.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\nEmail: %s\n", b.Name, b.Email)
	for _, f := range []struct {
		label string
		ok    bool
		val   string
	}{
		{"Role", b.Role.Valid, b.Role.String},
		{"Organization", b.Organization.Valid, b.Organization.String},
		{"Timezone", b.Timezone.Valid, b.Timezone.String},
		{"Start", b.SlotStart.Valid, b.SlotStart.Time.Format(time.RFC3339)},
		{"End", b.SlotEnd.Valid, b.SlotEnd.Time.Format(time.RFC3339)},
	} {
		if f.ok {
			fmt.Fprintf(&sb, "%s: %s\n", f.label, f.val)
		}
	}
	if b.Notes.Valid {
		fmt.Fprintf(&sb, "\n%s\n", b.Notes.String)
	}
	fmt.Fprintf(&sb, "\nID: %s\n", id)
	return sb.String()
}
