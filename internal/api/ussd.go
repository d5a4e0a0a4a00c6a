package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/channel/ussd"
	"banking-chatbot/engine/internal/dedup"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/metrics"
)

const ussdContentType = "text/plain; charset=utf-8"

// USSDController receives gateway callbacks. The channel is synchronous: the
// reply rides back on the same request as a CON/END framed text body.
type USSDController struct {
	adapter    *ussd.Adapter
	dispatcher *dispatch.Dispatcher
	dedup      dedup.Deduplicator
	log        *logger.Logger
}

// NewUSSDController creates the gateway callback controller.
func NewUSSDController(adapter *ussd.Adapter, d *dispatch.Dispatcher, dd dedup.Deduplicator, log *logger.Logger) *USSDController {
	return &USSDController{
		adapter:    adapter,
		dispatcher: d,
		dedup:      dd,
		log:        log.WithChannel(ussd.ChannelName),
	}
}

// RegisterRoutesV1 registers the callback endpoint under the version group.
func (c *USSDController) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.POST("/channels/ussd/callback", c.Receive)
}

// Receive processes one gateway round trip. Errors still answer with a
// well-formed END frame so the user sees a message instead of a gateway
// timeout.
func (c *USSDController) Receive(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		c.log.LogError(err, "read gateway body")
		c.reply(ctx, channel.Response{Text: "Invalid request.", Terminal: true})
		return
	}

	msg, err := c.adapter.Parse(body)
	if err != nil {
		c.log.Warn("unparseable gateway request", "error", err.Error())
		metrics.MessagesTotal.WithLabelValues(ussd.ChannelName, metrics.OutcomeMalformed).Inc()
		c.reply(ctx, channel.Response{Text: "Invalid request.", Terminal: true})
		return
	}

	log := c.log.WithOwner(msg.Sender)

	first, err := c.dedup.MarkProcessed(ctx.Request.Context(), ussd.ChannelName, msg.MessageID)
	if err != nil {
		log.LogError(err, "dedup check failed", "message_id", msg.MessageID)
		c.reply(ctx, channel.Response{Text: "Service unavailable. Please try again later.", Terminal: true})
		return
	}
	if !first {
		metrics.DuplicatesTotal.WithLabelValues(ussd.ChannelName).Inc()
		log.Info("duplicate request dropped", "message_id", msg.MessageID)
		c.reply(ctx, channel.Response{Text: "Your request is already being processed.", Terminal: true})
		return
	}

	resp := c.dispatcher.Dispatch(ctx.Request.Context(), c.adapter, msg)
	c.reply(ctx, resp)
}

func (c *USSDController) reply(ctx *gin.Context, resp channel.Response) {
	ctx.Data(http.StatusOK, ussdContentType, c.adapter.Format(resp))
}
