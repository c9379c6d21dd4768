// internal/submission/model.go
//
// Normalized lead records and their column layout.
//
// Contact and Booking are what the intake handlers persist.  Optional
// values are sql.Null* so an absent field is written as an explicit NULL
// instead of being dropped from the statement.
package submission

import (
	"database/sql"

	"github.com/yanizio/adept-intake/internal/store"
)

// Table names.
const (
	TableContacts = "contacts"
	TableBookings = "bookings"

	// ConflictExternalEventID is the upsert key for webhook bookings.
	ConflictExternalEventID = "external_event_id"
)

// Source records where a submission came from.
type Source string

const (
	SourceLanding Source = "landing"
	SourceWebhook Source = "webhook"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Attribution holds the marketing UTM tags.
type Attribution struct {
	Source   sql.NullString
	Medium   sql.NullString
	Campaign sql.NullString
}

// RequestMeta is the request context the normalizer may draw on.
type RequestMeta struct {
	ClientIP string
	UTM      map[string]string // utm_source, utm_medium, utm_campaign from the query
}

// Contact is a normalized contact-form lead.
type Contact struct {
	Name         string
	Email        string
	Role         string
	Organization sql.NullString
	PainPoint    string
	Source       Source
	Consent      bool
	Attribution  Attribution
	IP           string
}

// Record lays c out in the contacts column order.
func (c *Contact) Record() store.Record {
	return store.Record{
		{Name: "name", Value: c.Name},
		{Name: "email", Value: c.Email},
		{Name: "role", Value: c.Role},
		{Name: "organization", Value: c.Organization},
		{Name: "pain_point", Value: c.PainPoint},
		{Name: "source", Value: string(c.Source)},
		{Name: "consent", Value: c.Consent},
		{Name: "utm_source", Value: c.Attribution.Source},
		{Name: "utm_medium", Value: c.Attribution.Medium},
		{Name: "utm_campaign", Value: c.Attribution.Campaign},
		{Name: "ip", Value: c.IP},
	}
}

// Booking is a normalized booking, direct or from a provider webhook.
type Booking struct {
	Name            string
	Email           string
	Role            sql.NullString
	Organization    sql.NullString
	Timezone        sql.NullString
	SlotStart       sql.NullTime
	SlotEnd         sql.NullTime
	ExternalEventID sql.NullString
	Status          Status
	Notes           sql.NullString
	Source          Source
	Attribution     Attribution
	IP              string
}

// Record lays b out in the bookings column order.
func (b *Booking) Record() store.Record {
	return store.Record{
		{Name: "name", Value: b.Name},
		{Name: "email", Value: b.Email},
		{Name: "role", Value: b.Role},
		{Name: "organization", Value: b.Organization},
		{Name: "timezone", Value: b.Timezone},
		{Name: "slot_start", Value: b.SlotStart},
		{Name: "slot_end", Value: b.SlotEnd},
		{Name: ConflictExternalEventID, Value: b.ExternalEventID},
		{Name: "status", Value: string(b.Status)},
		{Name: "notes", Value: b.Notes},
		{Name: "source", Value: string(b.Source)},
		{Name: "utm_source", Value: b.Attribution.Source},
		{Name: "utm_medium", Value: b.Attribution.Medium},
		{Name: "utm_campaign", Value: b.Attribution.Campaign},
		{Name: "ip", Value: b.IP},
	}
}
