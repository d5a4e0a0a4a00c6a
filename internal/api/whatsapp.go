package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/channel/whatsapp"
	"banking-chatbot/engine/internal/dedup"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/metrics"
)

// WhatsAppController receives provider webhook notifications. The webhook is
// acknowledged on the inbound connection; the computed reply is pushed
// through the provider API.
type WhatsAppController struct {
	adapter    *whatsapp.Adapter
	dispatcher *dispatch.Dispatcher
	dedup      dedup.Deduplicator
	cfg        *config.Config
	log        *logger.Logger
}

// NewWhatsAppController creates the webhook controller.
func NewWhatsAppController(adapter *whatsapp.Adapter, d *dispatch.Dispatcher, dd dedup.Deduplicator, cfg *config.Config, log *logger.Logger) *WhatsAppController {
	return &WhatsAppController{
		adapter:    adapter,
		dispatcher: d,
		dedup:      dd,
		cfg:        cfg,
		log:        log.WithChannel(whatsapp.ChannelName),
	}
}

// RegisterRoutesV1 registers the webhook endpoints under the version group.
func (c *WhatsAppController) RegisterRoutesV1(v1 *gin.RouterGroup) {
	group := v1.Group("/channels/whatsapp")
	{
		group.GET("/webhook", c.Verify)
		group.POST("/webhook", c.Receive)
	}
}

// Verify answers the provider's subscription handshake: echo the challenge
// when the verify token matches. An unconfigured token never matches, so a
// deployment that forgot to set one cannot be subscribed to.
func (c *WhatsAppController) Verify(ctx *gin.Context) {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	expected := c.cfg.Provider.VerifyToken
	if expected == "" || mode != "subscribe" || token != expected {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}
	ctx.String(http.StatusOK, challenge)
}

// Receive processes one webhook notification. The provider retries on
// non-2xx, so every admitted request is acknowledged 200 even when the
// payload is unusable; failures surface through logs and metrics instead.
func (c *WhatsAppController) Receive(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		c.log.LogError(err, "read webhook body")
		ctx.Data(http.StatusOK, "application/json", c.adapter.Format(channel.Response{}))
		return
	}

	msg, err := c.adapter.Parse(body)
	if err != nil {
		c.log.Warn("unparseable webhook", "error", err.Error())
		metrics.MessagesTotal.WithLabelValues(whatsapp.ChannelName, metrics.OutcomeMalformed).Inc()
		ctx.Data(http.StatusOK, "application/json", c.adapter.Format(channel.Response{}))
		return
	}

	log := c.log.WithOwner(msg.Sender)

	// Admission before side effects: a replayed notification is
	// acknowledged and dropped.
	first, err := c.dedup.MarkProcessed(ctx.Request.Context(), whatsapp.ChannelName, msg.MessageID)
	if err != nil {
		log.LogError(err, "dedup check failed", "message_id", msg.MessageID)
		ctx.Data(http.StatusOK, "application/json", c.adapter.Format(channel.Response{}))
		return
	}
	if !first {
		metrics.DuplicatesTotal.WithLabelValues(whatsapp.ChannelName).Inc()
		log.Info("duplicate message dropped", "message_id", msg.MessageID)
		ctx.Data(http.StatusOK, "application/json", c.adapter.Format(channel.Response{}))
		return
	}

	resp := c.dispatcher.Dispatch(ctx.Request.Context(), c.adapter, msg)

	if !c.adapter.Deliver(ctx.Request.Context(), msg.Sender, resp) {
		log.LogError(errors.NewDeliveryFailureError(
			fmt.Errorf("provider rejected reply to %s", msg.Sender)),
			"reply delivery failed", "message_id", msg.MessageID)
	}

	ctx.Data(http.StatusOK, "application/json", c.adapter.Format(resp))
}
