// Package pipeline adapts the notifier to the Pub/Sub streaming pipeline.
package pipeline

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
)

// ChangeEventTransformer is a dataflow Transformer that decodes and validates
// a raw message payload into a chatroom.ChangeEvent.
func ChangeEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*chatroom.ChangeEvent, bool, error) {
	event, err := DecodeChangeEvent(msg.Payload)
	if err != nil {
		// skip=true lets the StreamingService nack the message towards the DLQ.
		return nil, true, fmt.Errorf("failed to decode change event from message %s: %w", msg.ID, err)
	}
	return &event, false, nil
}
