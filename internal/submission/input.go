// internal/submission/input.go
//
// Typed payloads produced by form.Decode.  Optional keys are pointers so
// "absent" and "present but empty" both reach the normalizer.

package submission

// ContactInput is the body of POST /intake/contact.
type ContactInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	Organization *string `json:"organization"`
	PainPoint    string  `json:"painPoint"`
	Consent      bool    `json:"consent"`
	Company      *string `json:"company"` // honeypot
	UTMSource    *string `json:"utm_source"`
	UTMMedium    *string `json:"utm_medium"`
	UTMCampaign  *string `json:"utm_campaign"`
}

// BookingInput is a booking submitted directly from the page.
type BookingInput struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Role            *string `json:"role"`
	Organization    *string `json:"organization"`
	Timezone        *string `json:"timezone"`
	SlotStart       *string `json:"slot_start"`
	SlotEnd         *string `json:"slot_end"`
	ExternalEventID *string `json:"external_event_id"`
	Notes           *string `json:"notes"`
	Company         *string `json:"company"` // honeypot
	UTMSource       *string `json:"utm_source"`
	UTMMedium       *string `json:"utm_medium"`
	UTMCampaign     *string `json:"utm_campaign"`
}

// WebhookInput is the provider callback envelope.
type WebhookInput struct {
	EventType string `json:"event_type"`
	Payload   struct {
		Event WebhookEvent `json:"event"`
	} `json:"payload"`
}

// WebhookEvent is the scheduled meeting inside a webhook.
type WebhookEvent struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Invitee   Invitee  `json:"invitee"`
	Answers   []Answer `json:"answers"`
}

// Invitee is the person who booked.
type Invitee struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Timezone *string `json:"timezone"`
}

// Answer is one booking-form question and its free-text reply.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
