// Package firestore implements the notifier's stores on Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// DefaultTokensCollection holds one document per user, keyed by user id.
const DefaultTokensCollection = "notificationTokens"

// TokenStore implements dispatch.TokenStore using Google Cloud Firestore.
// Each user's document carries a "tokens" map whose keys are device tokens.
type TokenStore struct {
	client     *firestore.Client
	collection string
}

func NewTokenStore(client *firestore.Client, collection string) *TokenStore {
	if collection == "" {
		collection = DefaultTokensCollection
	}
	return &TokenStore{client: client, collection: collection}
}

func (s *TokenStore) GetTokens(ctx context.Context, userID string) (*chatroom.TokenRecord, error) {
	doc, err := s.userRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tokens for user %s: %w", userID, err)
	}

	var record chatroom.TokenRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("%w: tokens for user %s: %w", dispatch.ErrMalformedRecord, userID, err)
	}
	record.UserID = userID
	return &record, nil
}

// RegisterToken merges a single map entry so other devices' tokens are untouched.
func (s *TokenStore) RegisterToken(ctx context.Context, userID, token string) error {
	data := map[string]any{
		"tokens": map[string]any{token: true},
	}
	_, err := s.userRef(userID).Set(ctx, data, firestore.Merge(firestore.FieldPath{"tokens", token}))
	if err != nil {
		return fmt.Errorf("failed to register token for user %s: %w", userID, err)
	}
	return nil
}

// RemoveToken deletes one map entry. A missing document or entry is not an error.
func (s *TokenStore) RemoveToken(ctx context.Context, userID, token string) error {
	_, err := s.userRef(userID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"tokens", token}, Value: firestore.Delete},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to remove token for user %s: %w", userID, err)
	}
	return nil
}

func (s *TokenStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(userID)
}
