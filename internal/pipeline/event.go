package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

var validate = validator.New()

// snapshotJSON is the wire form of a chatroom snapshot. A nil Messages pointer
// means the field was absent, as opposed to an empty list.
type snapshotJSON struct {
	Users    []string            `json:"users" validate:"omitempty,dive,required"`
	Messages *[]chatroom.Message `json:"messages"`
}

// ChangeEventJSON is the wire form of a chatroom update:
//
//	{"chatroomId": "...", "before": {...}, "after": {...} | null}
type ChangeEventJSON struct {
	ChatroomID string        `json:"chatroomId" validate:"required"`
	Before     *snapshotJSON `json:"before" validate:"required"`
	After      *snapshotJSON `json:"after"`
}

// DecodeChangeEvent parses and validates a change event. Failures wrap
// dispatch.ErrMalformedEvent.
func DecodeChangeEvent(data []byte) (chatroom.ChangeEvent, error) {
	var wire ChangeEventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return chatroom.ChangeEvent{}, fmt.Errorf("%w: %w", dispatch.ErrMalformedEvent, err)
	}
	if err := validate.Struct(&wire); err != nil {
		return chatroom.ChangeEvent{}, fmt.Errorf("%w: %w", dispatch.ErrMalformedEvent, err)
	}

	event := chatroom.ChangeEvent{
		ChatroomID: wire.ChatroomID,
		Before:     wire.Before.toChatroom(),
	}
	if wire.After != nil {
		after := wire.After.toChatroom()
		event.After = &after
	}
	return event, nil
}

func (s *snapshotJSON) toChatroom() chatroom.Chatroom {
	room := chatroom.Chatroom{
		Users: make([]chatroom.UserRef, len(s.Users)),
	}
	for i, u := range s.Users {
		room.Users[i] = chatroom.UserRef(u)
	}
	if s.Messages != nil {
		room.HasMessages = true
		room.Messages = *s.Messages
	}
	return room
}
