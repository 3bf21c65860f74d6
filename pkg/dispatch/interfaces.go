// Package dispatch defines the contracts between the notification pipeline and
// its external collaborators: the document store and the push transport.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
)

// NotificationPayload is the platform-neutral push content built per send.
type NotificationPayload struct {
	Title       string
	Body        string
	ClickAction string
	Tag         string
	Data        map[string]string
}

// Transport sends one payload to a batch of device tokens in a single call.
// The returned results are positionally aligned with tokens.
type Transport interface {
	SendBatch(ctx context.Context, tokens []string, payload NotificationPayload) ([]DeliveryResult, error)
}

// TokenStore manages the per-user device token records.
type TokenStore interface {
	// GetTokens returns the user's record, or nil when none exists.
	GetTokens(ctx context.Context, userID string) (*chatroom.TokenRecord, error)

	// RegisterToken merges one token into the user's record.
	RegisterToken(ctx context.Context, userID, token string) error

	// RemoveToken deletes exactly one token from the user's record.
	// Removing an absent token is a no-op.
	RemoveToken(ctx context.Context, userID, token string) error
}

// ProfileStore resolves user references to profiles.
type ProfileStore interface {
	// GetProfile returns ErrNotFound when the referenced document does not exist.
	GetProfile(ctx context.Context, ref chatroom.UserRef) (*chatroom.UserProfile, error)

	// ClearLegacyToken removes the profile's single-token field if it still holds token.
	ClearLegacyToken(ctx context.Context, ref chatroom.UserRef, token string) error
}

// ChatroomStore performs the only chatroom write the notifier makes.
type ChatroomStore interface {
	DeleteChatroom(ctx context.Context, chatroomID string) error
}
