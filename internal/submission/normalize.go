// internal/submission/normalize.go
//
// Pure mapping from validated payloads to storable rows.  No I/O.
//
//   • strings trimmed, emails lower-cased
//   • blank optional values become NULL
//   • UTM tags from the body, falling back to the request query

package submission

import (
	"database/sql"
	"strings"
	"time"
)

// EventCancelled is the provider event type that cancels a booking.
const EventCancelled = "booking.cancelled"

// NormalizeContact turns a validated contact payload into a Contact.
func NormalizeContact(in *ContactInput, meta RequestMeta) Contact {
	return Contact{
		Name:         strings.TrimSpace(in.Name),
		Email:        normEmail(in.Email),
		Role:         strings.TrimSpace(in.Role),
		Organization: opt(in.Organization),
		PainPoint:    strings.TrimSpace(in.PainPoint),
		Source:       SourceLanding,
		Consent:      in.Consent,
		Attribution:  attribution(in.UTMSource, in.UTMMedium, in.UTMCampaign, meta),
		IP:           meta.ClientIP,
	}
}

// NormalizeBooking turns a booking submitted from the page into a Booking
// with status requested.
func NormalizeBooking(in *BookingInput, meta RequestMeta) Booking {
	return Booking{
		Name:            strings.TrimSpace(in.Name),
		Email:           normEmail(in.Email),
		Role:            opt(in.Role),
		Organization:    opt(in.Organization),
		Timezone:        opt(in.Timezone),
		SlotStart:       optTime(in.SlotStart),
		SlotEnd:         optTime(in.SlotEnd),
		ExternalEventID: opt(in.ExternalEventID),
		Status:          StatusRequested,
		Notes:           opt(in.Notes),
		Source:          SourceLanding,
		Attribution:     attribution(in.UTMSource, in.UTMMedium, in.UTMCampaign, meta),
		IP:              meta.ClientIP,
	}
}

// NormalizeWebhook maps a provider callback onto a Booking.  Role and
// organization are lifted from the booking-form answers by keyword.
func NormalizeWebhook(in *WebhookInput, meta RequestMeta) Booking {
	ev := &in.Payload.Event
	start, end := ev.StartTime, ev.EndTime

	status := StatusConfirmed
	if strings.TrimSpace(in.EventType) == EventCancelled {
		status = StatusCancelled
	}

	return Booking{
		Name:            strings.TrimSpace(ev.Invitee.Name),
		Email:           normEmail(ev.Invitee.Email),
		Role:            answerFor(ev.Answers, "role"),
		Organization:    answerFor(ev.Answers, "organization", "school"),
		Timezone:        opt(ev.Invitee.Timezone),
		SlotStart:       optTime(&start),
		SlotEnd:         optTime(&end),
		ExternalEventID: opt(&ev.ID),
		Status:          status,
		Notes:           notes(ev.Answers),
		Source:          SourceWebhook,
		Attribution:     attribution(nil, nil, nil, meta),
		IP:              meta.ClientIP,
	}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// opt trims p; nil or blank becomes NULL.
func opt(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// optTime parses an RFC 3339 value already checked by the validator.
func optTime(p *string) sql.NullTime {
	s := opt(p)
	if !s.Valid {
		return sql.NullTime{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// attribution prefers body tags and falls back to the query string.
func attribution(src, med, camp *string, meta RequestMeta) Attribution {
	pick := func(body *string, key string) sql.NullString {
		if v := opt(body); v.Valid {
			return v
		}
		q := meta.UTM[key]
		return opt(&q)
	}
	return Attribution{
		Source:   pick(src, "utm_source"),
		Medium:   pick(med, "utm_medium"),
		Campaign: pick(camp, "utm_campaign"),
	}
}

// answerFor returns the answer to the first question that mentions any
// keyword, case-insensitively.
func answerFor(answers []Answer, keywords ...string) sql.NullString {
	for _, a := range answers {
		q := strings.ToLower(a.Question)
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				return opt(&a.Answer)
			}
		}
	}
	return sql.NullString{}
}

// notes renders answers as "question: answer" lines.
func notes(answers []Answer) sql.NullString {
	if len(answers) == 0 {
		return sql.NullString{}
	}
	lines := make([]string, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, strings.TrimSpace(a.Question)+": "+strings.TrimSpace(a.Answer))
	}
	joined := strings.Join(lines, "\n")
	return opt(&joined)
}
