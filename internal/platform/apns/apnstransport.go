// Package apns sends notification batches directly to the Apple Push Notification Service.
package apns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// APNSClient defines the subset of the apns2.Client methods we use.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw content of the .p8 key file.
	P8KeyContent []byte
}

type Transport struct {
	client APNSClient
	topic  string
	logger *slog.Logger
}

// NewTransport parses the P8 key up front so bad credentials fail at startup.
func NewTransport(cfg Config, logger *slog.Logger) (*Transport, error) {
	if cfg.BundleID == "" {
		return nil, errors.New("apns bundle id is required")
	}
	authKey, err := token.AuthKeyFromBytes(cfg.P8KeyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	return newTransport(client, cfg.BundleID, logger), nil
}

func newTransport(client APNSClient, topic string, logger *slog.Logger) *Transport {
	return &Transport{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSTransport"),
	}
}

// SendBatch pushes to each token in turn; the APNs HTTP/2 API has no multicast.
// A transport error on one token is reported for that token only.
func (t *Transport) SendBatch(ctx context.Context, tokens []string, p dispatch.NotificationPayload) ([]dispatch.DeliveryResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body).
		Sound("default")
	if p.ClickAction != "" {
		builder.Category(p.ClickAction)
	}
	if p.Tag != "" {
		builder.ThreadID(p.Tag)
	}
	for k, v := range p.Data {
		builder.Custom(k, v)
	}

	results := make([]dispatch.DeliveryResult, len(tokens))
	for i, deviceToken := range tokens {
		results[i] = dispatch.DeliveryResult{Token: deviceToken}
		if err := ctx.Err(); err != nil {
			results[i].Failure = dispatch.FailureOther
			results[i].Err = err
			continue
		}

		res, err := t.client.Push(&apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       t.topic,
			Payload:     builder,
			CollapseID:  p.Tag,
		})
		if err != nil {
			results[i].Failure = dispatch.FailureOther
			results[i].Err = fmt.Errorf("apns transport failed: %w", err)
			continue
		}
		if res.Sent() {
			continue
		}

		results[i].Failure = classify(res.Reason)
		results[i].Err = fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	return results, nil
}

// classify maps APNs rejection reasons onto the delivery failure kinds.
func classify(reason string) dispatch.FailureKind {
	switch reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		return dispatch.FailureInvalidToken
	case apns2.ReasonUnregistered:
		return dispatch.FailureNotRegistered
	default:
		return dispatch.FailureOther
	}
}
