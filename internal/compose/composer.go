// Package compose builds the push payload for a new chat message.
package compose

import (
	"fmt"
	"unicode/utf8"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// DataKeyChatroomID is the data field clients use to open the right chatroom.
const DataKeyChatroomID = "chatroom_id"

// Strings is the fixed set of user-facing texts.
type Strings struct {
	Title          string
	UnknownSender  string
	Emoticon       string
	UnknownMessage string
}

// DefaultStrings matches the strings shipped with the Android client.
var DefaultStrings = Strings{
	Title:          "새 메시지가 있습니다.",
	UnknownSender:  "알 수 없는 사용자",
	Emoticon:       "(이모티콘)",
	UnknownMessage: "(알 수 없는 메시지)",
}

// MaxTextRunes bounds the message part of the body. FCM rejects oversized
// messages with the same error kind it uses for bad tokens.
const MaxTextRunes = 1000

const ellipsis = "…"

// Composer is stateless apart from its configuration.
type Composer struct {
	strings     Strings
	clickAction string
}

// New returns a Composer. Empty fields in s fall back to DefaultStrings.
func New(s Strings, clickAction string) *Composer {
	if s.Title == "" {
		s.Title = DefaultStrings.Title
	}
	if s.UnknownSender == "" {
		s.UnknownSender = DefaultStrings.UnknownSender
	}
	if s.Emoticon == "" {
		s.Emoticon = DefaultStrings.Emoticon
	}
	if s.UnknownMessage == "" {
		s.UnknownMessage = DefaultStrings.UnknownMessage
	}
	return &Composer{strings: s, clickAction: clickAction}
}

// SenderName is the profile's display name, or the unknown-user text when the
// sender could not be resolved.
func (c *Composer) SenderName(sender *chatroom.UserProfile) string {
	if sender == nil {
		return c.strings.UnknownSender
	}
	return sender.DisplayName
}

// Text is the message part of the body.
func (c *Composer) Text(msg chatroom.Message) string {
	switch {
	case msg.Emoticon:
		return c.strings.Emoticon
	case msg.Content != "":
		return truncate(msg.Content, MaxTextRunes)
	default:
		return c.strings.UnknownMessage
	}
}

// Compose assembles the payload. sender may be nil.
func (c *Composer) Compose(sender *chatroom.UserProfile, msg chatroom.Message, chatroomID string) dispatch.NotificationPayload {
	return dispatch.NotificationPayload{
		Title:       c.strings.Title,
		Body:        fmt.Sprintf("%s: %s", c.SenderName(sender), c.Text(msg)),
		ClickAction: c.clickAction,
		Tag:         "new_message_" + chatroomID,
		Data: map[string]string{
			DataKeyChatroomID: chatroomID,
		},
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + ellipsis
}
