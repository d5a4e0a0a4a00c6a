package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/metrics"
	"banking-chatbot/engine/pkg/secrets"
)

// ProviderClient talks to the messaging provider's HTTP API for outbound
// delivery. The bearer token is resolved through the secrets manager on each
// send so rotations apply without restart.
type ProviderClient struct {
	client    *http.Client
	baseURL   string
	accountID string
	secrets   secrets.Manager
	log       *logger.Logger
}

// NewProviderClient creates a delivery client for the business account.
func NewProviderClient(baseURL, accountID string, sm secrets.Manager, timeout time.Duration, log *logger.Logger) *ProviderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProviderClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		accountID: accountID,
		secrets:   sm,
		log:       log.WithChannel(ChannelName),
	}
}

// outboundPayload is the provider message shape. Buttons turn the message
// interactive; plain responses go as text.
type outboundPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Context          *struct {
		MessageID string `json:"message_id"`
	} `json:"context,omitempty"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *interactivePayload `json:"interactive,omitempty"`
}

type interactivePayload struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []providerButton `json:"buttons"`
	} `json:"action"`
}

type providerButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

// Send delivers one response. Returns false on any failure; callers have
// already computed their inbound reply and only log the miss.
func (p *ProviderClient) Send(ctx context.Context, recipient string, resp channel.Response) bool {
	payload := outboundPayload{
		MessagingProduct: "whatsapp",
		To:               recipient,
	}
	if resp.ReplyTo != "" {
		payload.Context = &struct {
			MessageID string `json:"message_id"`
		}{MessageID: resp.ReplyTo}
	}

	if len(resp.Buttons) > 0 {
		payload.Type = "interactive"
		ip := &interactivePayload{Type: "button"}
		ip.Body.Text = resp.Text
		for _, b := range resp.Buttons {
			var pb providerButton
			pb.Type = "reply"
			pb.Reply.ID = b.ID
			pb.Reply.Title = b.Label
			ip.Action.Buttons = append(ip.Action.Buttons, pb)
		}
		payload.Interactive = ip
	} else {
		payload.Type = "text"
		payload.Text = &struct {
			Body string `json:"body"`
		}{Body: resp.Text}
	}

	ok := p.post(ctx, payload)
	status := "ok"
	if !ok {
		status = "failed"
	}
	metrics.DeliveriesTotal.WithLabelValues(ChannelName, status).Inc()
	return ok
}

// Notify implements the handlers.Notifier contract for out-of-band pushes.
func (p *ProviderClient) Notify(ctx context.Context, recipient, text string) bool {
	return p.Send(ctx, recipient, channel.Response{Text: text})
}

func (p *ProviderClient) post(ctx context.Context, payload outboundPayload) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.LogError(err, "encode outbound payload")
		return false
	}

	url := fmt.Sprintf("%s/%s/messages", p.baseURL, p.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		p.log.LogError(err, "build outbound request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	token := p.secrets.GetSecretWithDefault(ctx, secrets.KeyProviderToken, "")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.LogError(err, "outbound delivery failed", "to", payload.To)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn("provider rejected delivery", "to", payload.To, "status", resp.StatusCode)
		return false
	}
	return true
}
