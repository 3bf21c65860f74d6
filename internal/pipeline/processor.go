package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
)

// EventHandler processes one decoded chatroom update.
type EventHandler interface {
	Handle(ctx context.Context, invocationID string, event chatroom.ChangeEvent) error
}

// NewProcessor creates the stream processor for chatroom updates. Handler
// failures are logged and the message is still acknowledged, since a failed
// invocation is never retried.
func NewProcessor(handler EventHandler, logger *slog.Logger) messagepipeline.StreamProcessor[chatroom.ChangeEvent] {
	return func(ctx context.Context, original messagepipeline.Message, event *chatroom.ChangeEvent) error {
		if err := handler.Handle(ctx, original.ID, *event); err != nil {
			logger.Error("Chatroom update not processed; dropping",
				"chatroom_id", event.ChatroomID,
				"pubsub_msg_id", original.ID,
				"err", err,
			)
		}
		return nil
	}
}
