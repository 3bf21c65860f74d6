// Package classify decides what a chatroom update means for notifications.
package classify

import "github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"

// Kind is the category of a chatroom update.
type Kind int

const (
	// Deleted means the chatroom document no longer exists.
	Deleted Kind = iota + 1
	// Emptied means every participant has left; the chatroom should be removed.
	Emptied
	// NoMessages means one of the snapshots has no messages field.
	NoMessages
	// MetadataOnly means something other than the message list changed.
	MetadataOnly
	// NewMessage means a message was appended.
	NewMessage
)

func (k Kind) String() string {
	switch k {
	case Deleted:
		return "deleted"
	case Emptied:
		return "emptied"
	case NoMessages:
		return "no_messages"
	case MetadataOnly:
		return "metadata_only"
	case NewMessage:
		return "new_message"
	default:
		return "unknown"
	}
}

// Outcome is the classifier's verdict. Message is set only for NewMessage.
type Outcome struct {
	Kind    Kind
	Message chatroom.Message
}

// Classify inspects the before and after snapshots. The checks run in a fixed
// priority order and the first match wins.
//
// Message lists are assumed to be append-only, so a count comparison is
// enough to detect a send. A removal paired with an append in the same update
// keeps the count equal and is reported as MetadataOnly.
func Classify(before chatroom.Chatroom, after *chatroom.Chatroom) Outcome {
	if after == nil {
		return Outcome{Kind: Deleted}
	}
	if len(after.Users) == 0 {
		return Outcome{Kind: Emptied}
	}
	if !after.HasMessages || !before.HasMessages {
		return Outcome{Kind: NoMessages}
	}
	// A shrinking list is not a send either.
	if len(after.Messages) <= len(before.Messages) {
		return Outcome{Kind: MetadataOnly}
	}
	last, _ := after.LastMessage()
	return Outcome{Kind: NewMessage, Message: last}
}
