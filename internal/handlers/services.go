package handlers

import (
	"context"
	"fmt"
	"strings"

	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
)

// The services states execute on entry and return straight to the welcome
// hub; they hold no inputs and own no session data keys.

func (h *flows) servicesBalance(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	customer, err := h.Gate.Customer(ctx, msg.Sender)
	if err != nil {
		return nil, err
	}

	balance, currency, err := h.Banking.Balance(ctx, customer.AccountNumber)
	if err != nil {
		return nil, err
	}

	return h.backToWelcome(ctx, msg.Sender,
		fmt.Sprintf("Your available balance is %s %.2f.", currency, balance), nil)
}

func (h *flows) servicesStatement(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	customer, err := h.Gate.Customer(ctx, msg.Sender)
	if err != nil {
		return nil, err
	}

	entries, err := h.Banking.MiniStatement(ctx, customer.AccountNumber)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return h.backToWelcome(ctx, msg.Sender, "No recent transactions.", nil)
	}

	var b strings.Builder
	b.WriteString("Recent transactions:")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("\n%s  %-20s %10.2f", e.Date, e.Description, e.Amount))
	}
	return h.backToWelcome(ctx, msg.Sender, b.String(), nil)
}

func (h *flows) servicesDetails(ctx context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	customer, err := h.Gate.Customer(ctx, msg.Sender)
	if err != nil {
		return nil, err
	}

	account, err := h.Banking.AccountLookup(ctx, customer.AccountNumber)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Account details:\nName: %s\nNumber: %s\nCurrency: %s\nStatus: %s",
		account.Name, account.Number, account.Currency, account.Status)
	return h.backToWelcome(ctx, msg.Sender, details, nil)
}
