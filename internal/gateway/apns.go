package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
)

// APNSClient sends notifications through Apple's push service using
// token-based (JWT) authentication.
type APNSClient struct {
	client *apns2.Client
	logger *slog.Logger
}

// NewAPNSClient builds an APNs client from validated configuration.
func NewAPNSClient(cfg Config) (*APNSClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	authKey, err := token.AuthKeyFromFile(cfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load APNs signing key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	host := "development"
	if cfg.Production {
		host = "production"
	}
	logger := slog.With("component", "apns")
	logger.Info("APNs client initialized", "host", host, "topic", cfg.Topic)

	return &APNSClient{client: client, logger: logger}, nil
}

// Send pushes one notification and maps the APNs response to an Outcome.
// HTTP-level errors (connection, TLS, timeout) come back as transport errors.
func (c *APNSClient) Send(ctx context.Context, deviceToken, topic string, payload []byte) (*Outcome, error) {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       topic,
		Payload:     payload,
		PushType:    apns2.PushTypeMDM,
	}

	res, err := c.client.PushWithContext(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("apns push: %w", err)
	}

	if res.Sent() {
		return &Outcome{Accepted: true}, nil
	}

	outcome := &Outcome{Reason: res.Reason}
	if outcome.Reason == "" {
		outcome.Reason = fmt.Sprintf("unknown reason (status %d)", res.StatusCode)
	}
	// APNs reports the invalidation instant for tokens that are no longer
	// registered (410 Unregistered).
	if !res.Timestamp.IsZero() {
		outcome.TokenInvalidatedAt = res.Timestamp.Time
	}
	return outcome, nil
}

// Close releases the underlying HTTP/2 connections.
func (c *APNSClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	c.logger.Info("APNs client closed")
	return nil
}

// Verify APNSClient implements Client
var _ Client = (*APNSClient)(nil)
