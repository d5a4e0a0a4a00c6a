// Package handlers contains the per-flow state handlers. Each handler is a
// stateless function of (message, session) closing over the shared
// dependency struct; real work goes through the core-banking client.
package handlers

import (
	"context"
	"strings"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/banking"
	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/menu"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/logger"
)

// Notifier pushes an out-of-band text to an owner, e.g. a re-sent OTP code.
// Wired to the messaging provider client at startup; nil disables pushes.
type Notifier interface {
	Notify(ctx context.Context, recipient, text string) bool
}

// Deps are the collaborators every flow may need, composed once at startup.
type Deps struct {
	Banking banking.Client
	Gate    auth.Gate
	Menus   *menu.Registry
	Notify  Notifier
	Cfg     *config.Config
	Log     *logger.Logger
}

// NewRegistry builds the state → handler dispatch table.
func NewRegistry(deps Deps) dispatch.Registry {
	h := &flows{deps}
	return dispatch.Registry{
		dispatch.StateHelp: h.help,

		dispatch.StateAuthentication:  h.pinLogin,
		dispatch.StateOTPVerification: h.otpVerification,

		dispatch.StateRegistrationName:    h.registrationName,
		dispatch.StateRegistrationAccount: h.registrationAccount,
		dispatch.StateRegistrationPIN:     h.registrationPIN,
		dispatch.StateRegistrationConfirm: h.registrationConfirm,

		dispatch.StateTransferInit:      h.transferInit,
		dispatch.StateTransferRecipient: h.transferRecipient,
		dispatch.StateTransferAmount:    h.transferAmount,
		dispatch.StateTransferConfirm:   h.transferConfirm,

		dispatch.StateBillPaymentInit:      h.billInit,
		dispatch.StateBillPaymentReference: h.billReference,
		dispatch.StateBillPaymentAmount:    h.billAmount,
		dispatch.StateBillPaymentConfirm:   h.billConfirm,

		dispatch.StateServicesBalance:   h.servicesBalance,
		dispatch.StateServicesStatement: h.servicesStatement,
		dispatch.StateServicesDetails:   h.servicesDetails,
	}
}

type flows struct {
	Deps
}

// welcomeFor renders the state and prompt a finished flow returns to.
func (h *flows) welcomeFor(ctx context.Context, owner string) (string, string) {
	registered, err := h.Gate.IsRegistered(ctx, owner)
	if err != nil || !registered {
		return dispatch.StateWelcomeUnregistered, h.Menus.Render(dispatch.StateWelcomeUnregistered)
	}
	return dispatch.StateWelcome, h.Menus.Render(dispatch.StateWelcome)
}

// backToWelcome is the common "flow finished" outcome: result text followed
// by the main menu.
func (h *flows) backToWelcome(ctx context.Context, owner, text string, data models.DataBag) (*dispatch.Outcome, error) {
	state, prompt := h.welcomeFor(ctx, owner)
	if text != "" {
		text += "\n\n"
	}
	return &dispatch.Outcome{
		Response:  responseText(text + prompt),
		NextState: state,
		Data:      data,
	}, nil
}

// help has no inputs of its own; it prints the help text and returns to the
// welcome hub.
func (h *flows) help(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	help := "Help:\n" +
		"Send the number of a menu option to select it.\n" +
		"Send " + h.Cfg.Dialogue.MainMenuToken + " at any time to return to the main menu.\n" +
		"Send " + h.Cfg.Dialogue.ExitToken + " to end the conversation."
	return h.backToWelcome(ctx, msg.Sender, help, nil)
}

func responseText(text string) channel.Response {
	return channel.Response{Text: text}
}

func entryTurn(msg *message.Message) bool {
	return strings.TrimSpace(msg.Content) == ""
}

func input(msg *message.Message) string {
	return strings.TrimSpace(msg.Content)
}
