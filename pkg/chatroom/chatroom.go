// Package chatroom contains the domain model shared by the notifier's
// pipeline stages: chatroom snapshots, messages, profiles and token records.
package chatroom

import "sort"

// UserRef is an opaque reference to a user profile document,
// e.g. "users/4dM2xQ". It is resolved by a ProfileStore.
type UserRef string

// Message is one entry of a chatroom's message history.
type Message struct {
	UID      string `json:"uid" firestore:"uid"`
	Content  string `json:"content,omitempty" firestore:"content,omitempty"`
	Emoticon bool   `json:"emoticon,omitempty" firestore:"emoticon,omitempty"`
}

// Chatroom is a point-in-time snapshot of a chatroom document.
type Chatroom struct {
	Users    []UserRef
	Messages []Message
	// HasMessages is false when the document carries no messages field at all,
	// which is distinct from an empty message list.
	HasMessages bool
}

// LastMessage returns the newest message, if any.
func (c Chatroom) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ChangeEvent is a single update of a chatroom document.
type ChangeEvent struct {
	ChatroomID string
	Before     Chatroom
	// After is nil when the chatroom was deleted.
	After *Chatroom
}

// UserProfile is a resolved user document. ID is always the document's own id.
type UserProfile struct {
	ID          string  `firestore:"-"`
	Ref         UserRef `firestore:"-"`
	DisplayName string  `firestore:"displayName"`
	// FCMToken is the legacy single-token field, superseded by TokenRecord.
	FCMToken string `firestore:"fcmToken,omitempty"`
}

// TokenRecord holds every device token registered for one user.
// Only the keys of Tokens are meaningful.
type TokenRecord struct {
	UserID string         `json:"user_id" firestore:"-"`
	Tokens map[string]any `json:"tokens" firestore:"tokens"`
}

// List returns the record's tokens in a stable order.
func (r *TokenRecord) List() []string {
	if r == nil || len(r.Tokens) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(r.Tokens))
	for t := range r.Tokens {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	sort.Strings(tokens)
	return tokens
}
