package intake

import (
	"errors"
	"net/http"

	"github.com/yanizio/adept-intake/internal/form"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/metrics"
	"github.com/yanizio/adept-intake/internal/store"
)

// Sentinel errors raised by the handlers themselves.  Validation and bot
// errors come from form; store failures arrive as *store.StoreError.
var (
	ErrRateLimited      = errors.New("intake: rate limit exceeded")
	ErrSignatureInvalid = errors.New("intake: webhook signature invalid")
)

// endpoint carries the per-route wording of the generic messages.
type endpoint struct {
	name       string
	invalidMsg string
	failedMsg  string
}

var (
	contactEndpoint = endpoint{
		name:       "contact",
		invalidMsg: "Please check your form data and try again.",
		failedMsg:  "Failed to save contact information. Please try again.",
	}
	bookingEndpoint = endpoint{
		name:       "booking",
		invalidMsg: "Invalid booking data provided.",
		failedMsg:  "An unexpected error occurred while processing the booking.",
	}
)

const (
	msgRateLimited = "Too many requests. Please try again later."
	msgBot         = "Invalid submission detected."
	msgSignature   = "Invalid webhook signature."
	msgUnknown     = "An unexpected error occurred. Please try again."
)

// fail maps err onto the error taxonomy and writes the response.
//
//	ErrRateLimited         429
//	*form.ValidationError  400 + field errors
//	form.ErrBotDetected    400 generic
//	ErrSignatureInvalid    401 generic
//	*store.StoreError      500 generic, logged
//	anything else          500 generic, logged
func fail(w http.ResponseWriter, r *http.Request, ep endpoint, err error) {
	log := logger.FromContext(r.Context())
	count := func(outcome string) {
		metrics.IntakeRequestsTotal.WithLabelValues(ep.name, outcome).Inc()
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		count(outcomeRateLimited)
		log.Infow("rate limited", "endpoint", ep.name)
		writeJSON(w, http.StatusTooManyRequests, Envelope{Message: msgRateLimited})

	case errors.Is(err, form.ErrBotDetected):
		count(outcomeBot)
		log.Infow("honeypot triggered", "endpoint", ep.name)
		writeJSON(w, http.StatusBadRequest, Envelope{Message: msgBot})

	case form.IsValidationError(err):
		count(outcomeInvalid)
		fields := form.FieldErrors(err)
		log.Debugw("validation failed", "endpoint", ep.name, "fields", len(fields))
		writeJSON(w, http.StatusBadRequest, Envelope{Message: ep.invalidMsg, Errors: fields})

	case errors.Is(err, ErrSignatureInvalid):
		count(outcomeUnauthorized)
		log.Warnw("webhook signature rejected", "endpoint", ep.name, "err", err)
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: msgSignature})

	case store.IsStoreError(err):
		count(outcomeFailed)
		log.Errorw("persist failed", "endpoint", ep.name, "err", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: ep.failedMsg})

	default:
		count(outcomeFailed)
		log.Errorw("intake error", "endpoint", ep.name, "err", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: msgUnknown})
	}
}
