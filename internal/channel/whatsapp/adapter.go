// Package whatsapp adapts the asynchronous messaging channel: webhook
// payloads in, provider API deliveries out. The webhook is acknowledged
// synchronously; the computed reply travels out-of-band.
package whatsapp

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/logger"
)

// ChannelName identifies this adapter in sessions, dedup keys and metrics.
const ChannelName = "whatsapp"

// ackPayload is the fixed webhook acknowledgement. It doubles as the
// generic-error fallback so a reply body is always producible.
var ackPayload = []byte(`{"status":"received"}`)

// webhookEnvelope mirrors the provider's notification shape. Only the fields
// needed for the canonical message are parsed; everything else stays in Raw.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// Adapter implements channel.Adapter for the messaging channel.
type Adapter struct {
	store    session.Store
	caps     config.ChannelCapabilities
	provider *ProviderClient
	log      *logger.Logger
}

// New creates the adapter over the shared session store and provider client.
func New(store session.Store, caps config.ChannelCapabilities, provider *ProviderClient, log *logger.Logger) *Adapter {
	return &Adapter{
		store:    store,
		caps:     caps,
		provider: provider,
		log:      log.WithChannel(ChannelName),
	}
}

func (a *Adapter) Name() string                            { return ChannelName }
func (a *Adapter) Capabilities() config.ChannelCapabilities { return a.caps }

// Parse extracts the first message of the webhook notification. Button and
// list replies resolve to their stable option id.
func (a *Adapter) Parse(body []byte) (*message.Message, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewMalformedInputError("webhook body is not valid JSON")
	}

	if len(envelope.Entry) == 0 || len(envelope.Entry[0].Changes) == 0 {
		return nil, errors.NewMalformedInputError("webhook carries no changes")
	}
	value := envelope.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, errors.NewMalformedInputError("webhook carries no messages")
	}
	if value.Metadata.PhoneNumberID == "" {
		return nil, errors.NewMalformedInputError("missing business account identifier")
	}

	in := value.Messages[0]

	content := in.Text.Body
	kind := message.TypeText
	if in.Type == "interactive" {
		kind = message.TypeInteractive
		switch in.Interactive.Type {
		case "button_reply":
			content = in.Interactive.ButtonReply.ID
		case "list_reply":
			content = in.Interactive.ListReply.ID
		}
	}

	ts := time.Now()
	if secs, err := strconv.ParseInt(in.Timestamp, 10, 64); err == nil {
		ts = time.Unix(secs, 0)
	}

	// The conversation is scoped to the sender; the provider assigns no
	// session identifier of its own.
	return message.New(in.From, in.ID, in.From, value.Metadata.PhoneNumberID, content, kind, ts, body)
}

// Format renders the webhook acknowledgement. Never fails.
func (a *Adapter) Format(_ channel.Response) []byte {
	return ackPayload
}

func (a *Adapter) FindSession(ctx context.Context, msg *message.Message) (*models.Session, error) {
	return a.store.GetActiveByOwner(ctx, ChannelName, msg.Sender)
}

func (a *Adapter) CreateSession(ctx context.Context, owner, state string, data models.DataBag) (*models.Session, error) {
	return a.store.Create(ctx, ChannelName, owner, state, data, a.caps.SessionTTL)
}

func (a *Adapter) UpdateSession(ctx context.Context, id string, patch session.Patch) (bool, error) {
	// Store expiry tracks last activity; the dispatcher owns the idle
	// window and checks it against UpdatedAt before dispatching.
	patch.ExtendTTL = a.caps.SessionTTL
	return a.store.Update(ctx, id, patch)
}

func (a *Adapter) EndSession(ctx context.Context, id string) (bool, error) {
	return a.store.End(ctx, id)
}

// Deliver pushes the response through the provider API. Failures are logged
// and do not abort the response computed for the inbound request.
func (a *Adapter) Deliver(ctx context.Context, recipient string, resp channel.Response) bool {
	ctx, cancel := context.WithTimeout(ctx, a.caps.DeliveryTimeout)
	defer cancel()
	return a.provider.Send(ctx, recipient, resp)
}
