//go:build integration

package chatroomnotifier_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tinywideclouds/go-chatroom-notifier/chatroomnotifier"
	"github.com/tinywideclouds/go-chatroom-notifier/chatroomnotifier/config"
	fsStore "github.com/tinywideclouds/go-chatroom-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// --- MOCKS ---

// mockTransport records every batch and fails the tokens listed in stale.
type mockTransport struct {
	mu       sync.Mutex
	calls    int
	batches  [][]string
	payloads []dispatch.NotificationPayload
	stale    map[string]dispatch.FailureKind
}

func newMockTransport(stale map[string]dispatch.FailureKind) *mockTransport {
	return &mockTransport{stale: stale}
}

func (m *mockTransport) SendBatch(_ context.Context, tokens []string, p dispatch.NotificationPayload) ([]dispatch.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.batches = append(m.batches, append([]string(nil), tokens...))
	m.payloads = append(m.payloads, p)

	results := make([]dispatch.DeliveryResult, len(tokens))
	for i, tok := range tokens {
		results[i] = dispatch.DeliveryResult{Token: tok}
		if kind, ok := m.stale[tok]; ok {
			results[i].Failure = kind
			results[i].Err = fmt.Errorf("rejected: %s", kind)
		}
	}
	return results, nil
}

func (m *mockTransport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockTransport) Last() ([]string, dispatch.NotificationPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[len(m.batches)-1], m.payloads[len(m.payloads)-1]
}

func noopAuth(h http.Handler) http.Handler { return h }

// --- TEST ---

func TestChatroomNotifier_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-integ"

	// 1. Emulators
	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsClient.Close() })

	stores := chatroomnotifier.Stores{
		Profiles:  fsStore.NewProfileStore(fsClient, ""),
		Tokens:    fsStore.NewTokenStore(fsClient, ""),
		Chatrooms: fsStore.NewChatroomStore(fsClient, ""),
	}

	// 2. Seed profiles and tokens
	for id, name := range map[string]string{"alice": "Alice", "bob": "Bob", "carol": "Carol"} {
		_, err := fsClient.Collection("users").Doc(id).Set(ctx, map[string]any{"displayName": name})
		require.NoError(t, err)
	}
	require.NoError(t, stores.Tokens.RegisterToken(ctx, "alice", "alice-phone"))
	require.NoError(t, stores.Tokens.RegisterToken(ctx, "bob", "bob-phone"))
	require.NoError(t, stores.Tokens.RegisterToken(ctx, "bob", "bob-old-tablet"))
	require.NoError(t, stores.Tokens.RegisterToken(ctx, "carol", "carol-phone"))

	t.Run("New message fans out and prunes stale tokens", func(t *testing.T) {
		topicID := "chatroom-updates-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		transport := newMockTransport(map[string]dispatch.FailureKind{
			"bob-old-tablet": dispatch.FailureNotRegistered,
		})

		consumer, err := messagepipeline.NewGooglePubsubConsumer(
			messagepipeline.NewGooglePubsubConsumerDefaults(subID), psClient, logger,
		)
		require.NoError(t, err)

		svc, err := chatroomnotifier.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2, Push: config.PushConfig{ClickAction: ".ChatActivity"}},
			consumer,
			transport,
			stores,
			noopAuth,
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		payload := []byte(`{
			"chatroomId": "room-42",
			"before": {"users": ["users/alice", "users/bob", "users/carol"], "messages": [{"uid": "bob", "content": "hey"}]},
			"after":  {"users": ["users/alice", "users/bob", "users/carol"], "messages": [{"uid": "bob", "content": "hey"}, {"uid": "alice", "content": "hi all"}]}
		}`)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return transport.CallCount() == 1
		}, 10*time.Second, 100*time.Millisecond)

		tokens, sent := transport.Last()
		assert.ElementsMatch(t, []string{"bob-phone", "bob-old-tablet", "carol-phone"}, tokens)
		assert.NotContains(t, tokens, "alice-phone")
		assert.Equal(t, "Alice: hi all", sent.Body)
		assert.Equal(t, "room-42", sent.Data["chatroom_id"])

		require.Eventually(t, func() bool {
			rec, err := stores.Tokens.GetTokens(ctx, "bob")
			return err == nil && len(rec.List()) == 1 && rec.List()[0] == "bob-phone"
		}, 10*time.Second, 100*time.Millisecond)
	})

	t.Run("Emptied chatroom is deleted", func(t *testing.T) {
		topicID := "chatroom-updates-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)

		_, err := fsClient.Collection("chatrooms").Doc("room-empty").Set(ctx, map[string]any{"users": []string{}})
		require.NoError(t, err)

		transport := newMockTransport(nil)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(
			messagepipeline.NewGooglePubsubConsumerDefaults(subID), psClient, logger,
		)
		require.NoError(t, err)

		svc, err := chatroomnotifier.New(&config.Config{ListenAddr: ":0", NumPipelineWorkers: 1}, consumer, transport, stores, noopAuth, logger)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		defer svcCancel()
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

		payload := []byte(`{"chatroomId": "room-empty", "before": {"users": ["users/alice"]}, "after": {"users": []}}`)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, err := fsClient.Collection("chatrooms").Doc("room-empty").Get(ctx)
			return err != nil
		}, 10*time.Second, 100*time.Millisecond)
		assert.Equal(t, 0, transport.CallCount())
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}
