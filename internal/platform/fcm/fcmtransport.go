// Package fcm sends notification batches through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Transport struct {
	client MessagingClient
	logger *slog.Logger
}

func NewTransport(client MessagingClient, logger *slog.Logger) *Transport {
	return &Transport{
		client: client,
		logger: logger.With("component", "FCMTransport"),
	}
}

// SendBatch sends one multicast message. FCM answers per token, in order.
func (t *Transport) SendBatch(ctx context.Context, tokens []string, payload dispatch.NotificationPayload) ([]dispatch.DeliveryResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	br, err := t.client.SendEachForMulticast(ctx, buildMessage(tokens, payload))
	if err != nil {
		return nil, fmt.Errorf("fcm transport failed: %w", err)
	}
	if len(br.Responses) != len(tokens) {
		return nil, fmt.Errorf("fcm returned %d responses for %d tokens", len(br.Responses), len(tokens))
	}

	results := make([]dispatch.DeliveryResult, len(tokens))
	for idx, resp := range br.Responses {
		results[idx] = dispatch.DeliveryResult{Token: tokens[idx]}
		if resp.Success {
			continue
		}
		results[idx].Failure = classify(resp.Error)
		results[idx].Err = resp.Error
	}

	t.logger.Debug("FCM batch sent", "success", br.SuccessCount, "failure", br.FailureCount)
	return results, nil
}

func buildMessage(tokens []string, payload dispatch.NotificationPayload) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   payload.Data,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ClickAction: payload.ClickAction,
				Tag:         payload.Tag,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Category: payload.ClickAction,
					ThreadID: payload.Tag,
				},
			},
		},
	}
}

// classify maps an FCM send error onto the delivery failure kinds.
// INVALID_ARGUMENT also covers payload problems ("message is too big"), so
// it only marks the token invalid when the error is about the token itself.
func classify(err error) dispatch.FailureKind {
	switch {
	case err == nil:
		return dispatch.FailureOther
	case messaging.IsRegistrationTokenNotRegistered(err):
		return dispatch.FailureNotRegistered
	case messaging.IsInvalidArgument(err) && isTokenError(err):
		return dispatch.FailureInvalidToken
	default:
		return dispatch.FailureOther
	}
}

func isTokenError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "registration token")
}
