// Package provider talks to the hosted-payment provider: it opens checkout
// sessions and verifies the authenticity of settlement webhooks. Business
// meaning of events is decided by the caller, not here.
package provider

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrSessionRejected  = errors.New("provider rejected the checkout session")
	ErrUnavailable      = errors.New("payment provider unavailable")
)

// MetadataOrderID is the only metadata key the service writes into a
// session. The webhook resolves the order through it and through nothing
// else; cart data echoed back by the provider is never trusted.
const MetadataOrderID = "order_id"

type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int32  `json:"quantity"`
	Currency   string `json:"currency"`
}

type SessionSpec struct {
	LineItems     []LineItem        `json:"line_items"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Metadata      map[string]string `json:"metadata"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
}

// Session is the provider's handle on a hosted checkout flow.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a verified settlement notification. Metadata carries back what
// the service put into the session, including the order id.
type Event struct {
	ID        string
	Type      string
	SessionID string
	Metadata  map[string]string
}

func (e *Event) OrderID() string {
	return e.Metadata[MetadataOrderID]
}

type Client interface {
	CreateSession(ctx context.Context, spec *SessionSpec) (*Session, error)
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
