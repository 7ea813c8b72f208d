// Package gateway abstracts the push-notification gateway that relays MDM
// commands to devices. The engine treats it as an opaque async send
// capability; transport details live behind the Client interface.
package gateway

import (
	"context"
	"time"
)

// Outcome is the gateway's resolution of a single send. A transport error is
// reported through Send's error return instead, so an Outcome is always one
// of accepted or rejected.
type Outcome struct {
	// Accepted reports whether the gateway took responsibility for delivery.
	Accepted bool

	// Reason is the gateway-provided rejection reason when not accepted
	// (e.g. "BadDeviceToken", "PayloadTooLarge").
	Reason string

	// TokenInvalidatedAt is non-zero when the gateway reports the device
	// token as permanently invalidated. Callers surface this to operators;
	// the engine does not purge tokens itself.
	TokenInvalidatedAt time.Time
}

// Client sends raw notifications to the push gateway.
//
// Send blocks until the gateway resolves the notification or ctx expires.
// It returns a non-nil Outcome for both acceptances and well-formed
// rejections; an error indicates a transport failure (network, TLS, timeout)
// that the caller may retry.
type Client interface {
	Send(ctx context.Context, deviceToken, topic string, payload []byte) (*Outcome, error)

	// Close releases gateway resources. Must be awaited before process exit.
	Close() error
}
