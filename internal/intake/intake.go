// internal/intake/intake.go
//
// Intake – Request handlers.
//
// Context
//   Two endpoints accept leads from the landing page:
//
//     POST /intake/contact   ContactHandler
//     POST /intake/booking   BookingHandler (direct or provider webhook)
//
//   Each request runs the same pipeline:
//
//     received → rate-checked → validated → persisted
//
//   and may leave it early as rejected (429, 400, 401) or failed (500).
//   Handlers own the HTTP mapping only.  Validation lives in form,
//   normalization in submission, and persistence behind store.Store.
//
// Response envelope
//   {success, message, id?, errors?}.  Field errors appear only for
//   ordinary validation failures.  Bot, signature, store, and unknown
//   failures carry a generic message.
//
//------------------------------------------------------------------------------

package intake

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yanizio/adept-intake/internal/form"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/message"
	"github.com/yanizio/adept-intake/internal/metrics"
	"github.com/yanizio/adept-intake/internal/requestinfo"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
)

// DefaultMaxBodyBytes caps a request body when the handler is not given a
// limit.
const DefaultMaxBodyBytes int64 = 64 << 10

// Limiter is the rate-limit check a handler needs.  *ratelimit.Limiter
// satisfies it.
type Limiter interface {
	Allow(key string) bool
}

// Envelope is the JSON body of every intake response except 405.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	ID      string            `json:"id,omitempty"`
	Errors  []form.ErrorField `json:"errors,omitempty"`
}

// Outcome labels for intake_requests_total.
const (
	outcomePersisted    = "persisted"
	outcomeRateLimited  = "rate_limited"
	outcomeInvalid      = "invalid"
	outcomeBot          = "bot"
	outcomeUnauthorized = "unauthorized"
	outcomeFailed       = "failed"
	outcomeMethod       = "method_not_allowed"
)

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// writeJSON sends v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// methodNotAllowed answers any non-POST request.
func methodNotAllowed(w http.ResponseWriter, ep endpoint) {
	metrics.IntakeRequestsTotal.WithLabelValues(ep.name, outcomeMethod).Inc()
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
}

// succeed writes the 200 envelope.
func succeed(w http.ResponseWriter, ep endpoint, msg, id string) {
	metrics.IntakeRequestsTotal.WithLabelValues(ep.name, outcomePersisted).Inc()
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: msg, ID: id})
}

// clientMeta pulls the request metadata attached by requestinfo.
func clientMeta(r *http.Request) submission.RequestMeta {
	if info := requestinfo.FromContext(r.Context()); info != nil {
		return submission.RequestMeta{ClientIP: info.ClientIP, UTM: info.UTM}
	}
	return submission.RequestMeta{ClientIP: requestinfo.Unknown}
}

// readBody drains r.Body up to limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &form.ValidationError{Fields: []form.ErrorField{{Message: "Request body too large."}}}
		}
		return nil, err
	}
	return body, nil
}

// common holds what both handlers share.
type common struct {
	limiter      Limiter
	store        store.Store
	notifier     *message.Notifier
	maxBodyBytes int64
}

// admit runs the rate check and reads the body.  It writes the response
// itself and returns ok=false when the request must stop.
func (c *common) admit(w http.ResponseWriter, r *http.Request, ep endpoint) (meta submission.RequestMeta, body []byte, ok bool) {
	meta = clientMeta(r)
	if !c.limiter.Allow(meta.ClientIP) {
		fail(w, r, ep, ErrRateLimited)
		return meta, nil, false
	}
	body, err := readBody(w, r, c.maxBodyBytes)
	if err != nil {
		fail(w, r, ep, err)
		return meta, nil, false
	}
	return meta, body, true
}

// notify hands a summary to the notifier without blocking.
func (c *common) notify(r *http.Request, subject, text string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(r.Context(), subject, text)
	logger.FromContext(r.Context()).Debugw("notification queued", "subject", subject)
}
