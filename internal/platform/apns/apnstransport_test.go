package apns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) Push(n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func TestSendBatch_Internal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	p := dispatch.NotificationPayload{
		Title: "Hello iOS",
		Body:  "Bob: hi",
		Tag:   "new_message_room-1",
		Data:  map[string]string{"chatroom_id": "room-1"},
	}

	t.Run("Happy Path - Success", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		transport := newTransport(mockClient, "com.test.app", logger)

		mockClient.On("Push", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "token-1" && n.Topic == "com.test.app" && n.CollapseID == "new_message_room-1"
		})).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		results, err := transport.SendBatch(ctx, []string{"token-1"}, p)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Ok())
		mockClient.AssertExpectations(t)
	})

	t.Run("Rejections map to failure kinds", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		transport := newTransport(mockClient, "com.test.app", logger)

		respond := func(token, reason string, status int) {
			mockClient.On("Push", mock.MatchedBy(func(n *apns2.Notification) bool {
				return n.DeviceToken == token
			})).Return(&apns2.Response{StatusCode: status, Reason: reason}, nil)
		}
		respond("bad", apns2.ReasonBadDeviceToken, http.StatusBadRequest)
		respond("gone", apns2.ReasonUnregistered, http.StatusGone)
		respond("busy", apns2.ReasonTooManyRequests, http.StatusTooManyRequests)
		respond("fine", "", http.StatusOK)

		results, err := transport.SendBatch(ctx, []string{"bad", "gone", "busy", "fine"}, p)

		require.NoError(t, err)
		require.Len(t, results, 4)
		assert.Equal(t, dispatch.FailureInvalidToken, results[0].Failure)
		assert.Equal(t, dispatch.FailureNotRegistered, results[1].Failure)
		assert.Equal(t, dispatch.FailureOther, results[2].Failure)
		assert.True(t, results[3].Ok())
	})

	t.Run("Transport failure affects only that token", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		transport := newTransport(mockClient, "com.test.app", logger)

		mockClient.On("Push", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "token-1"
		})).Return(nil, errors.New("connection refused"))
		mockClient.On("Push", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "token-2"
		})).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		results, err := transport.SendBatch(ctx, []string{"token-1", "token-2"}, p)

		require.NoError(t, err)
		assert.Equal(t, dispatch.FailureOther, results[0].Failure)
		assert.False(t, results[0].Stale())
		assert.True(t, results[1].Ok())
	})

	t.Run("Bad key fails at construction", func(t *testing.T) {
		_, err := NewTransport(Config{BundleID: "com.test.app", P8KeyContent: []byte("not a key")}, logger)
		require.Error(t, err)
	})
}
