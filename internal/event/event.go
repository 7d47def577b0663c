package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload is returned when an inbound message body is not a
// well-formed event or is missing required fields. It is a connection-level
// error: the message is rejected, nothing else is affected.
var ErrMalformedPayload = errors.New("malformed payload")

// Client identifies which side of the relay produced or consumes an event.
const (
	ClientFrontend = "frontend"
	ClientBackend  = "backend"
)

// Enumerated task outcomes carried in the Status field.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// TypePing is an application-level heartbeat. A ping payload carries only
// the type field and is answered with "pong" to the sender; it is never
// routed.
const TypePing = "ping"

// Message is a status-update event published by a backend service or a
// frontend session. It is immutable once parsed: routing and delivery treat
// it as one atomic unit fanned out to N targets independently.
type Message struct {
	MerchantID string `json:"merchant_id"`
	Client     string `json:"client"`
	Project    string `json:"project"`
	Type       string `json:"type"`
	Ref        string `json:"ref"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

// IsPing reports whether the message is a heartbeat rather than a routable
// event.
func (m Message) IsPing() bool {
	return m.Type == TypePing
}

// IsTaskCompletion reports whether the event type represents a finished
// task (e.g. "report.Task"), for which Status and Message are mandatory.
func (m Message) IsTaskCompletion() bool {
	return strings.HasSuffix(m.Type, ".Task")
}

// Parse decodes and validates a raw message body. Missing required fields
// or non-JSON bodies fail with ErrMalformedPayload; fields are never
// silently coerced or defaulted.
func Parse(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// Heartbeats carry no routing attributes.
	if m.IsPing() {
		return m, nil
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"merchant_id", m.MerchantID},
		{"client", m.Client},
		{"project", m.Project},
		{"type", m.Type},
		{"ref", m.Ref},
	} {
		if f.value == "" {
			return Message{}, fmt.Errorf("%w: missing required field %q", ErrMalformedPayload, f.name)
		}
	}

	if m.Client != ClientFrontend && m.Client != ClientBackend {
		return Message{}, fmt.Errorf("%w: client must be %q or %q, got %q",
			ErrMalformedPayload, ClientFrontend, ClientBackend, m.Client)
	}

	if m.IsTaskCompletion() {
		if m.Status == "" {
			return Message{}, fmt.Errorf("%w: missing required field %q for type %q",
				ErrMalformedPayload, "status", m.Type)
		}
		if m.Message == "" {
			return Message{}, fmt.Errorf("%w: missing required field %q for type %q",
				ErrMalformedPayload, "message", m.Type)
		}
	}

	return m, nil
}
