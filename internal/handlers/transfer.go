package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"banking-chatbot/engine/internal/banking"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
)

// Session data keys owned by the transfer flow.
const (
	keyTransferType      = "transfer_type"
	keyTransferRecipient = "transfer_recipient"
	keyTransferAmount    = "transfer_amount"
)

const transferTypeMenu = "Select transfer type:\n1. To my other account\n2. To another account"

// transferInit captures the transfer type.
func (h *flows) transferInit(_ context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText(transferTypeMenu)}, nil
	}

	var kind string
	switch input(msg) {
	case "1":
		kind = "own"
	case "2":
		kind = "other"
	default:
		return &dispatch.Outcome{Response: responseText("Invalid selection.\n" + transferTypeMenu)}, nil
	}

	return &dispatch.Outcome{
		Response:  responseText("Enter the recipient account number."),
		NextState: dispatch.StateTransferRecipient,
		Data:      models.DataBag{keyTransferType: kind},
	}, nil
}

// transferRecipient validates the destination account. Reads: transfer_type.
func (h *flows) transferRecipient(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Enter the recipient account number.")}, nil
	}

	account, err := h.Banking.AccountLookup(ctx, input(msg))
	if err != nil {
		if errors.Is(err, banking.ErrUpstream) {
			return &dispatch.Outcome{
				Response: responseText("We couldn't find that account. Please check the number and try again."),
			}, nil
		}
		return nil, err
	}

	return &dispatch.Outcome{
		Response:  responseText("Sending to " + account.Name + " (" + account.Number + "). Enter the amount."),
		NextState: dispatch.StateTransferAmount,
		Data:      models.DataBag{keyTransferRecipient: account.Number},
	}, nil
}

// transferAmount captures and validates the amount. Reads: transfer_recipient.
func (h *flows) transferAmount(_ context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Enter the amount.")}, nil
	}

	amount, err := strconv.ParseFloat(input(msg), 64)
	if err != nil || amount <= 0 {
		return &dispatch.Outcome{Response: responseText("Enter a valid amount greater than zero.")}, nil
	}

	recipient, _ := sess.DataString(keyTransferRecipient)
	return &dispatch.Outcome{
		Response: responseText(fmt.Sprintf("Send %.2f to account %s?\n1. Confirm\n2. Cancel", amount, recipient)),
		NextState: dispatch.StateTransferConfirm,
		Data:      models.DataBag{keyTransferAmount: amount},
	}, nil
}

// transferConfirm executes the movement through the core-banking system.
// Reads: transfer_recipient, transfer_amount.
func (h *flows) transferConfirm(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	switch input(msg) {
	case "1":
		customer, err := h.Gate.Customer(ctx, msg.Sender)
		if err != nil {
			return nil, err
		}
		recipient, _ := sess.DataString(keyTransferRecipient)
		amount, ok := sess.DataFloat(keyTransferAmount)
		if !ok || recipient == "" {
			return &dispatch.Outcome{
				Response:  responseText("This transfer is incomplete. Let's start again: select the transfer type."),
				NextState: dispatch.StateTransferInit,
			}, nil
		}

		receipt, err := h.Banking.Transfer(ctx, banking.TransferRequest{
			FromAccount: customer.AccountNumber,
			ToAccount:   recipient,
			Amount:      amount,
			Narration:   "chatbot transfer",
		})
		if err != nil {
			// Surfaced to the dispatcher boundary: the user gets the
			// generic retry message and the state is held for a retry.
			return nil, err
		}

		return h.backToWelcome(ctx, msg.Sender,
			fmt.Sprintf("Transfer of %.2f to %s completed. Reference: %s.", amount, recipient, receipt.Reference),
			nil)
	case "2":
		return h.backToWelcome(ctx, msg.Sender, "Transfer cancelled.", nil)
	default:
		return &dispatch.Outcome{Response: responseText("Reply 1 to confirm or 2 to cancel.")}, nil
	}
}
