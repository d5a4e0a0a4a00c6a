// Package message defines the channel-agnostic representation of one inbound
// user message. Adapters construct it from raw provider payloads; everything
// downstream of the adapters works only with this type.
package message

import (
	"time"

	"banking-chatbot/engine/pkg/errors"
)

// Type of inbound content.
type Type string

const (
	TypeText        Type = "text"
	TypeInteractive Type = "interactive"
)

// Message is the canonical inbound message. Immutable once constructed.
type Message struct {
	// SessionID is the channel-scoped session/conversation identifier.
	SessionID string
	// MessageID is globally unique per channel and drives deduplication.
	MessageID string
	// Sender is the channel address of the user (phone number or equivalent).
	Sender string
	// Recipient is the channel address the message was sent to.
	Recipient string
	// Content is the normalized user-visible input. Button and list replies
	// are resolved to their stable id or numeric token before this point.
	Content string
	// Kind distinguishes free text from interactive replies.
	Kind Type
	// Timestamp is when the provider recorded the message.
	Timestamp time.Time
	// Raw retains the original payload for diagnostics only.
	Raw []byte
}

// New validates required fields and constructs a canonical message.
// A missing sender or session identifier is a MalformedInput rejection.
func New(sessionID, messageID, sender, recipient, content string, kind Type, ts time.Time, raw []byte) (*Message, error) {
	if sender == "" {
		return nil, errors.NewMalformedInputError("missing sender address")
	}
	if sessionID == "" {
		return nil, errors.NewMalformedInputError("missing session identifier")
	}
	if messageID == "" {
		return nil, errors.NewMalformedInputError("missing message identifier")
	}
	if kind == "" {
		kind = TypeText
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Message{
		SessionID: sessionID,
		MessageID: messageID,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Kind:      kind,
		Timestamp: ts,
		Raw:       raw,
	}, nil
}

// WithContent returns a copy carrying different content. Used when the
// dispatcher replays a deferred input after authentication.
func (m *Message) WithContent(content string) *Message {
	clone := *m
	clone.Content = content
	return &clone
}
