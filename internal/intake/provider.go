// internal/intake/provider.go
//
// Booking origin classification.  Classify runs once per request and its
// result is switched on in BookingHandler.ServeHTTP.

package intake

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// Provider is the origin of a booking request.
type Provider int

const (
	// ProviderNative is a booking posted by the landing page itself.
	ProviderNative Provider = iota
	ProviderCalCom
	ProviderCalendly
	// ProviderGeneric is a webhook-shaped body from an unidentified sender.
	ProviderGeneric
)

func (p Provider) String() string {
	switch p {
	case ProviderNative:
		return "native"
	case ProviderCalCom:
		return "calcom"
	case ProviderCalendly:
		return "calendly"
	case ProviderGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Signature headers sent by the providers.
const (
	HeaderCalComSignature   = "X-Cal-Signature-256"
	HeaderCalendlySignature = "Calendly-Webhook-Signature"
)

// Classify decides which provider sent r.  Request metadata wins over the
// body: User-Agent or signature header first, then a truthy event_type
// in the body.
func Classify(r *http.Request, body []byte) Provider {
	ua := strings.ToLower(r.UserAgent())
	switch {
	case strings.Contains(ua, "cal.com") || r.Header.Get(HeaderCalComSignature) != "":
		return ProviderCalCom
	case strings.Contains(ua, "calendly") || r.Header.Get(HeaderCalendlySignature) != "":
		return ProviderCalendly
	case hasEventType(body):
		return ProviderGeneric
	default:
		return ProviderNative
	}
}

// hasEventType reports whether body is an object with a non-empty,
// non-false event_type.  Malformed bodies are not webhooks.
func hasEventType(body []byte) bool {
	var probe struct {
		EventType json.RawMessage `json:"event_type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	raw := bytes.TrimSpace(probe.EventType)
	switch string(raw) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}
