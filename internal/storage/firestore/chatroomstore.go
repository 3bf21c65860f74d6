package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

const DefaultChatroomsCollection = "chatrooms"

// ChatroomStore implements dispatch.ChatroomStore.
type ChatroomStore struct {
	client     *firestore.Client
	collection string
}

func NewChatroomStore(client *firestore.Client, collection string) *ChatroomStore {
	if collection == "" {
		collection = DefaultChatroomsCollection
	}
	return &ChatroomStore{client: client, collection: collection}
}

// DeleteChatroom removes the whole chatroom document. Deleting a missing
// document succeeds.
func (s *ChatroomStore) DeleteChatroom(ctx context.Context, chatroomID string) error {
	if _, err := s.client.Collection(s.collection).Doc(chatroomID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete chatroom %s: %w", chatroomID, err)
	}
	return nil
}
