// internal/intake/contact.go
//
// POST /intake/contact: rate check, schema validation with honeypot,
// normalization, insert into contacts, then an async lead notification.

package intake

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/yanizio/adept-intake/internal/form"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/message"
	"github.com/yanizio/adept-intake/internal/store"
	"github.com/yanizio/adept-intake/internal/submission"
)

// SchemaContact is the form schema for the contact endpoint.
const SchemaContact = "contact"

const msgContactOK = "Thank you! We'll be in touch within 1 business day."

// ContactHandler serves POST /intake/contact.
type ContactHandler struct{ common }

// NewContactHandler wires the contact pipeline.  n may be nil.
func NewContactHandler(l Limiter, s store.Store, n *message.Notifier, maxBodyBytes int64) *ContactHandler {
	return &ContactHandler{common{limiter: l, store: s, notifier: n, maxBodyBytes: maxBodyBytes}}
}

func (h *ContactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ep := contactEndpoint
	if r.Method != http.MethodPost {
		methodNotAllowed(w, ep)
		return
	}

	meta, body, ok := h.admit(w, r, ep)
	if !ok {
		return
	}

	in, err := form.Decode[submission.ContactInput](SchemaContact, body)
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	c := submission.NormalizeContact(&in, meta)
	id, err := h.store.Insert(r.Context(), submission.TableContacts, c.Record())
	if err != nil {
		fail(w, r, ep, err)
		return
	}

	logger.FromContext(r.Context()).Infow("contact stored", "id", id, "role", c.Role)
	h.notify(r, "New contact: "+c.Name, contactSummary(id, &c))
	succeed(w, ep, msgContactOK, id)
}

func contactSummary(id string, c *submission.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nRole: %s\n", c.Name, c.Email, c.Role)
	if c.Organization.Valid {
		fmt.Fprintf(&b, "Organization: %s\n", c.Organization.String)
	}
	fmt.Fprintf(&b, "\n%s\n\nID: %s\n", c.PainPoint, id)
	return b.String()
}
