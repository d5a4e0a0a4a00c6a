// Package channel defines the uniform adapter contract both channels expose.
// Channel differences (session identity scheme, TTL semantics, login
// challenge) live in the capability block from configuration, never in
// dispatcher branching.
package channel

import (
	"context"

	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
)

// Button is one interactive reply option on channels that support them.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Response is the channel-agnostic computed reply for one inbound message.
type Response struct {
	// Text is the user-visible prompt or result.
	Text string
	// Buttons are rendered as interactive options where the channel
	// supports them; menu channels fold them into the text.
	Buttons []Button
	// Terminal ends the conversation round (END on the menu channel,
	// goodbye on the messaging channel).
	Terminal bool
	// ReplyTo carries the provider message id being answered, when the
	// channel threads replies.
	ReplyTo string
}

// Adapter translates a channel's raw requests to and from the canonical
// model and owns that channel's session semantics.
type Adapter interface {
	// Name identifies the channel ("whatsapp", "ussd").
	Name() string

	// Capabilities returns the channel's session and login policy.
	Capabilities() config.ChannelCapabilities

	// Parse extracts the canonical message from a raw request body.
	// Fails with MalformedInput when required fields are absent.
	Parse(body []byte) (*message.Message, error)

	// Format renders a response into the channel payload. It never fails:
	// on internal formatting errors it returns a fixed generic-error
	// payload so a reply is always producible.
	Format(resp Response) []byte

	// FindSession locates the session addressed by the message, using the
	// channel's identity scheme.
	FindSession(ctx context.Context, msg *message.Message) (*models.Session, error)

	// CreateSession starts a new session for owner with the channel's TTL.
	CreateSession(ctx context.Context, owner, state string, data models.DataBag) (*models.Session, error)

	// UpdateSession persists a transition, extending TTL on sliding
	// channels. False means the session is gone.
	UpdateSession(ctx context.Context, id string, patch session.Patch) (bool, error)

	// EndSession marks the session ended.
	EndSession(ctx context.Context, id string) (bool, error)

	// Deliver sends the response out-of-band where the channel requires
	// it. Synchronous channels return true without sending: their reply
	// travels on the inbound request. Failures are logged, never fatal to
	// the already-computed response.
	Deliver(ctx context.Context, recipient string, resp Response) bool
}
