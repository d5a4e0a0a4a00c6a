// Package ussd adapts the synchronous menu channel: one gateway request in,
// one prefixed text frame out on the same connection. The gateway keeps the
// transport open only while the session lives, so expiry is sliding.
package ussd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/logger"
)

// ChannelName identifies this adapter in sessions, dedup keys and metrics.
const ChannelName = "ussd"

// Gateway frame prefixes. CON keeps the session open for further input,
// END closes it.
const (
	prefixContinue = "CON "
	prefixEnd      = "END "
)

// fallbackFrame is returned when a response cannot be rendered, so the
// gateway always receives a well-formed frame.
var fallbackFrame = []byte(prefixEnd + "Service unavailable. Please try again later.")

// gatewayRequest is the aggregator's callback shape. RequestID is optional;
// most gateways do not replay, so a missing one is synthesized rather than
// rejected.
type gatewayRequest struct {
	SessionID   string `json:"sessionId"`
	MSISDN      string `json:"msisdn"`
	ServiceCode string `json:"serviceCode"`
	Text        string `json:"text"`
	RequestID   string `json:"requestId"`
}

// Adapter implements channel.Adapter for the menu channel.
type Adapter struct {
	store session.Store
	caps  config.ChannelCapabilities
	log   *logger.Logger
}

// New creates the adapter over the shared session store.
func New(store session.Store, caps config.ChannelCapabilities, log *logger.Logger) *Adapter {
	return &Adapter{
		store: store,
		caps:  caps,
		log:   log.WithChannel(ChannelName),
	}
}

func (a *Adapter) Name() string                             { return ChannelName }
func (a *Adapter) Capabilities() config.ChannelCapabilities { return a.caps }

// Parse extracts the canonical message from the gateway callback. The
// gateway concatenates the whole input history with '*'; only the segment
// after the last separator is the current turn.
func (a *Adapter) Parse(body []byte) (*message.Message, error) {
	var req gatewayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.NewMalformedInputError("gateway body is not valid JSON")
	}
	if req.MSISDN == "" {
		return nil, errors.NewMalformedInputError("missing msisdn")
	}
	if req.SessionID == "" {
		return nil, errors.NewMalformedInputError("missing sessionId")
	}

	messageID := req.RequestID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	content := req.Text
	if idx := strings.LastIndex(content, "*"); idx >= 0 {
		content = content[idx+1:]
	}

	return message.New(req.SessionID, messageID, req.MSISDN, req.ServiceCode, content, message.TypeText, time.Now(), body)
}

// Format renders the gateway frame. Buttons fold into numbered lines since
// the channel has no interactive elements. Never fails.
func (a *Adapter) Format(resp channel.Response) []byte {
	text := resp.Text
	if len(resp.Buttons) > 0 {
		var b strings.Builder
		b.WriteString(text)
		for _, btn := range resp.Buttons {
			fmt.Fprintf(&b, "\n%s. %s", btn.ID, btn.Label)
		}
		text = b.String()
	}
	if text == "" {
		return fallbackFrame
	}

	prefix := prefixContinue
	if resp.Terminal {
		prefix = prefixEnd
	}
	return []byte(prefix + text)
}

// FindSession locates the owner's active session and slides its expiry:
// every gateway round trip counts as activity.
func (a *Adapter) FindSession(ctx context.Context, msg *message.Message) (*models.Session, error) {
	sess, err := a.store.GetActiveByOwner(ctx, ChannelName, msg.Sender)
	if err != nil || sess == nil {
		return nil, err
	}
	if ok, err := a.store.Update(ctx, sess.ID, session.Patch{ExtendTTL: a.caps.SessionTTL}); err != nil || !ok {
		return nil, err
	}
	sess.ExpiresAt = time.Now().Add(a.caps.SessionTTL)
	return sess, nil
}

func (a *Adapter) CreateSession(ctx context.Context, owner, state string, data models.DataBag) (*models.Session, error) {
	return a.store.Create(ctx, ChannelName, owner, state, data, a.caps.SessionTTL)
}

// UpdateSession persists the transition and slides the expiry again so the
// window measures inactivity, not total session age.
func (a *Adapter) UpdateSession(ctx context.Context, id string, patch session.Patch) (bool, error) {
	patch.ExtendTTL = a.caps.SessionTTL
	return a.store.Update(ctx, id, patch)
}

func (a *Adapter) EndSession(ctx context.Context, id string) (bool, error) {
	return a.store.End(ctx, id)
}

// Deliver is a no-op: the reply rides the inbound gateway connection.
func (a *Adapter) Deliver(_ context.Context, _ string, _ channel.Response) bool {
	return true
}
