package handlers

import (
	"context"
	"errors"
	"regexp"

	"banking-chatbot/engine/internal/banking"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
)

// Session data keys owned by the registration flow.
const (
	keyRegName    = "reg_name"
	keyRegAccount = "reg_account"
	keyRegPIN     = "reg_pin"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// registrationName asks for and captures the customer's name.
func (h *flows) registrationName(_ context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Let's get you registered. What is your full name?")}, nil
	}
	if len(input(msg)) < 3 {
		return &dispatch.Outcome{Response: responseText("Please enter your full name.")}, nil
	}
	return &dispatch.Outcome{
		Response:  responseText("Thanks, " + input(msg) + ". Now enter your account number."),
		NextState: dispatch.StateRegistrationAccount,
		Data:      models.DataBag{keyRegName: input(msg)},
	}, nil
}

// registrationAccount validates the account number with the core-banking
// system. Reads: reg_name.
func (h *flows) registrationAccount(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Enter your account number.")}, nil
	}

	account, err := h.Banking.AccountLookup(ctx, input(msg))
	if err != nil {
		if errors.Is(err, banking.ErrUpstream) {
			return &dispatch.Outcome{
				Response: responseText("We couldn't verify that account number. Please check it and try again."),
			}, nil
		}
		return nil, err
	}

	return &dispatch.Outcome{
		Response:  responseText("Account " + account.Number + " found. Choose a 4-6 digit PIN."),
		NextState: dispatch.StateRegistrationPIN,
		Data:      models.DataBag{keyRegAccount: account.Number},
	}, nil
}

// registrationPIN captures the chosen PIN. Held in the session bag only
// until the confirm step hashes it.
func (h *flows) registrationPIN(_ context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Choose a 4-6 digit PIN.")}, nil
	}
	if !pinPattern.MatchString(input(msg)) {
		return &dispatch.Outcome{Response: responseText("Your PIN must be 4 to 6 digits. Try again.")}, nil
	}

	name, _ := sess.DataString(keyRegName)
	account, _ := sess.DataString(keyRegAccount)
	return &dispatch.Outcome{
		Response: responseText("Register " + name + " with account " + account + "?\n1. Confirm\n2. Cancel"),
		NextState: dispatch.StateRegistrationConfirm,
		Data:      models.DataBag{keyRegPIN: input(msg)},
	}, nil
}

// registrationConfirm creates the customer record.
// Reads: reg_name, reg_account, reg_pin.
func (h *flows) registrationConfirm(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	switch input(msg) {
	case "1":
		name, _ := sess.DataString(keyRegName)
		account, _ := sess.DataString(keyRegAccount)
		pin, ok := sess.DataString(keyRegPIN)
		if !ok || pin == "" {
			// The bag lost the PIN (expired mid-flow and recreated);
			// restart the flow rather than registering a blank PIN.
			return &dispatch.Outcome{
				Response:  responseText("Let's start over. What is your full name?"),
				NextState: dispatch.StateRegistrationName,
			}, nil
		}
		if err := h.Gate.Register(ctx, msg.Sender, name, account, pin); err != nil {
			return nil, err
		}
		return h.backToWelcome(ctx, msg.Sender,
			"Registration complete. Welcome, "+name+"!",
			models.DataBag{keyRegPIN: ""})
	case "2":
		return h.backToWelcome(ctx, msg.Sender, "Registration cancelled.", models.DataBag{keyRegPIN: ""})
	default:
		return &dispatch.Outcome{Response: responseText("Reply 1 to confirm or 2 to cancel.")}, nil
	}
}
