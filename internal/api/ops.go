package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/channel/ussd"
	"banking-chatbot/engine/internal/channel/whatsapp"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/logger"
)

// OpsController exposes the operator endpoints: session inspection and
// forced logout. Routes are mounted behind JWT auth by the router.
type OpsController struct {
	store session.Store
	gate  auth.Gate
	log   *logger.Logger
}

// NewOpsController creates the operator controller.
func NewOpsController(store session.Store, gate auth.Gate, log *logger.Logger) *OpsController {
	return &OpsController{store: store, gate: gate, log: log}
}

// RegisterRoutes registers the operator endpoints on the authenticated group.
func (c *OpsController) RegisterRoutes(ops *gin.RouterGroup) {
	ops.GET("/sessions/:id", c.GetSession)
	ops.POST("/owners/:owner/logout", c.ForceLogout)
}

// GetSession returns one active session by id for support investigations.
func (c *OpsController) GetSession(ctx *gin.Context) {
	id := ctx.Param("id")
	sess, err := c.store.Get(ctx.Request.Context(), id)
	if err != nil {
		c.log.LogError(err, "session lookup failed", "session_id", id)
		ctx.Error(errors.NewInternalServerError(errors.CodeServerError, "session lookup failed"))
		return
	}
	if sess == nil {
		ctx.Error(errors.NewNotFoundError(errors.CodeSessionNotFound, "no active session with that id"))
		return
	}
	ctx.JSON(http.StatusOK, sess)
}

// ForceLogout deactivates the owner's login and ends any active session on
// either channel. Used when a customer reports a lost device.
func (c *OpsController) ForceLogout(ctx *gin.Context) {
	owner := ctx.Param("owner")
	rctx := ctx.Request.Context()

	if err := c.gate.Logout(rctx, owner); err != nil {
		c.log.LogError(err, "force logout failed", "owner", owner)
		ctx.Error(errors.NewInternalServerError(errors.CodeServerError, "logout failed"))
		return
	}

	ended := 0
	for _, ch := range []string{whatsapp.ChannelName, ussd.ChannelName} {
		sess, err := c.store.GetActiveByOwner(rctx, ch, owner)
		if err != nil || sess == nil {
			continue
		}
		if ok, err := c.store.End(rctx, sess.ID); err == nil && ok {
			ended++
		}
	}

	operator, _ := ctx.Get("operator")
	c.log.Info("forced logout", "owner", owner, "sessions_ended", ended, "operator", operator)
	ctx.JSON(http.StatusOK, gin.H{"owner": owner, "sessions_ended": ended})
}
