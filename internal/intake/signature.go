// internal/intake/signature.go
//
// Webhook signature checks.
//
//	Cal.com    X-Cal-Signature-256         hex HMAC-SHA256(body)
//	Calendly   Calendly-Webhook-Signature  t=<unix>,v1=hex HMAC-SHA256("t.body")
//
// With no secrets configured verification is off.

package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/adept-intake/internal/config"
)

// DefaultTolerance bounds the age of a Calendly signature timestamp.
const DefaultTolerance = 5 * time.Minute

// Verifier checks webhook signatures for the providers that have a secret
// configured.
type Verifier struct {
	CalComSecret   string
	CalendlySecret string
	Tolerance      time.Duration
	Now            func() time.Time
}

// NewVerifier builds a Verifier from the webhook config section.
func NewVerifier(cfg config.Webhook) *Verifier {
	return &Verifier{
		CalComSecret:   cfg.CalcomSecret,
		CalendlySecret: cfg.CalendlySecret,
		Tolerance:      cfg.Tolerance,
	}
}

// enforcing reports whether any secret is configured.
func (v *Verifier) enforcing() bool {
	return v != nil && (v.CalComSecret != "" || v.CalendlySecret != "")
}

// Verify returns nil when the request may proceed, or an error wrapping
// ErrSignatureInvalid.  With no secrets configured every webhook passes.
// Once any secret is configured, a webhook is accepted only when its own
// provider has a secret and the signature matches.  Provider detection
// trusts the User-Agent, so an unsigned provider is refused like
// ProviderGeneric.
func (v *Verifier) Verify(p Provider, h http.Header, body []byte) error {
	if v == nil {
		return nil
	}
	switch p {
	case ProviderNative:
		return nil
	case ProviderCalCom:
		if v.CalComSecret == "" {
			return v.unsigned(p)
		}
		return v.verifyCalCom(h.Get(HeaderCalComSignature), body)
	case ProviderCalendly:
		if v.CalendlySecret == "" {
			return v.unsigned(p)
		}
		return v.verifyCalendly(h.Get(HeaderCalendlySignature), body)
	case ProviderGeneric:
		return v.unsigned(p)
	default:
		return fmt.Errorf("%w: unknown provider %d", ErrSignatureInvalid, int(p))
	}
}

// unsigned handles a webhook that has no secret to check against.
func (v *Verifier) unsigned(p Provider) error {
	if v.enforcing() {
		return fmt.Errorf("%w: no secret for %s webhook", ErrSignatureInvalid, p)
	}
	return nil
}

// verifyCalCom checks a hex HMAC-SHA256 of the raw body.
func (v *Verifier) verifyCalCom(sig string, body []byte) error {
	if sig == "" {
		return fmt.Errorf("%w: missing %s", ErrSignatureInvalid, HeaderCalComSignature)
	}
	if !hmacMatches(v.CalComSecret, body, strings.TrimPrefix(sig, "sha256=")) {
		return fmt.Errorf("%w: cal.com digest mismatch", ErrSignatureInvalid)
	}
	return nil
}

// verifyCalendly checks "t=<unix>,v1=<hex>" where v1 signs "<t>.<body>".
func (v *Verifier) verifyCalendly(header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s", ErrSignatureInvalid, HeaderCalendlySignature)
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, val, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch k {
		case "t":
			ts = val
		case "v1":
			sig = val
		}
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sig == "" {
		return fmt.Errorf("%w: malformed calendly header", ErrSignatureInvalid)
	}

	tol := v.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if age := now().Sub(time.Unix(sec, 0)); age > tol || age < -tol {
		return fmt.Errorf("%w: calendly timestamp outside tolerance", ErrSignatureInvalid)
	}

	signed := make([]byte, 0, len(ts)+1+len(body))
	signed = append(append(append(signed, ts...), '.'), body...)
	if !hmacMatches(v.CalendlySecret, signed, sig) {
		return fmt.Errorf("%w: calendly digest mismatch", ErrSignatureInvalid)
	}
	return nil
}

func hmacMatches(secret string, msg []byte, hexSig string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(hexSig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hmac.Equal(got, mac.Sum(nil))
}
