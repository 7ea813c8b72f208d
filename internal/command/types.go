// Package command defines the MDM command data model shared by the
// dispatch engine, the history store, and the HTTP API.
package command

import (
	"time"
)

// UUIDKey is the payload key correlating a submission with its history entry.
const UUIDKey = "CommandUUID"

// Payload is the MDM command body sent to the device (e.g. MessageType, PIN).
// It must carry a CommandUUID; the engine injects one when absent.
type Payload map[string]any

// UUID returns the CommandUUID value, or "" if the payload has none.
func (p Payload) UUID() string {
	if v, ok := p[UUIDKey].(string); ok {
		return v
	}
	return ""
}

// Request represents a command submission from the API boundary.
type Request struct {
	DeviceToken string  `json:"deviceToken"`
	Payload     Payload `json:"payload"`
}

// Ack acknowledges an accepted submission. The send itself happens
// asynchronously; the UUID is the handle for finding the eventual outcome.
type Ack struct {
	Message     string `json:"message"`
	DeviceToken string `json:"deviceToken"`
	CommandUUID string `json:"commandUUID"`
}

// Status is the terminal outcome of a dispatch attempt sequence.
type Status string

const (
	StatusAccepted     Status = "ACCEPTED"
	StatusRejected     Status = "REJECTED"
	StatusFailedToSend Status = "FAILED_TO_SEND"
)

// Result records the terminal outcome of one submission. Immutable once
// created; retries never produce intermediate results.
type Result struct {
	CommandUUID     string    `json:"commandUUID"`
	Status          Status    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
}

// NewResult creates a Result stamped with the current time.
func NewResult(commandUUID string, status Status, rejectionReason string) *Result {
	return &Result{
		CommandUUID:     commandUUID,
		Status:          status,
		Timestamp:       time.Now().UTC(),
		RejectionReason: rejectionReason,
	}
}
