package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

const DefaultUsersCollection = "users"

const legacyTokenField = "fcmToken"

// ProfileStore implements dispatch.ProfileStore. References are document
// paths ("users/abc"); a bare id is looked up in the users collection.
type ProfileStore struct {
	client     *firestore.Client
	collection string
}

func NewProfileStore(client *firestore.Client, collection string) *ProfileStore {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &ProfileStore{client: client, collection: collection}
}

func (s *ProfileStore) GetProfile(ctx context.Context, ref chatroom.UserRef) (*chatroom.UserProfile, error) {
	docRef, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile %s: %w", ref, dispatch.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", ref, err)
	}

	var profile chatroom.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("%w: profile %s: %w", dispatch.ErrMalformedRecord, ref, err)
	}
	profile.ID = doc.Ref.ID
	profile.Ref = ref
	return &profile, nil
}

// ClearLegacyToken deletes the profile's fcmToken field, but only while it
// still holds token, so a freshly written token is never lost.
func (s *ProfileStore) ClearLegacyToken(ctx context.Context, ref chatroom.UserRef, token string) error {
	docRef, err := s.resolve(ref)
	if err != nil {
		return err
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		current, err := doc.DataAt(legacyTokenField)
		if err != nil {
			// field absent
			return nil
		}
		if held, ok := current.(string); !ok || held != token {
			return nil
		}
		return tx.Update(docRef, []firestore.Update{{Path: legacyTokenField, Value: firestore.Delete}})
	})
	if err != nil {
		return fmt.Errorf("failed to clear legacy token for %s: %w", ref, err)
	}
	return nil
}

func (s *ProfileStore) resolve(ref chatroom.UserRef) (*firestore.DocumentRef, error) {
	path := strings.Trim(string(ref), "/")
	if path == "" {
		return nil, fmt.Errorf("empty user reference: %w", dispatch.ErrNotFound)
	}
	if !strings.Contains(path, "/") {
		return s.client.Collection(s.collection).Doc(path), nil
	}
	docRef := s.client.Doc(path)
	if docRef == nil {
		return nil, errors.Join(dispatch.ErrNotFound, fmt.Errorf("user reference %q is not a document path", ref))
	}
	return docRef, nil
}
