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

// Session data keys owned by the bill-payment flow.
const (
	keyBillBiller    = "bill_biller"
	keyBillReference = "bill_reference"
	keyBillCustomer  = "bill_customer"
	keyBillAmountDue = "bill_amount_due"
	keyBillAmount    = "bill_amount"
)

const billerMenu = "Select a biller:\n1. Electricity\n2. Water\n3. Television"

var billers = map[string]string{
	"1": "electricity",
	"2": "water",
	"3": "television",
}

// billInit captures the biller.
func (h *flows) billInit(_ context.Context, msg *message.Message, _ *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText(billerMenu)}, nil
	}

	biller, ok := billers[input(msg)]
	if !ok {
		return &dispatch.Outcome{Response: responseText("Invalid selection.\n" + billerMenu)}, nil
	}

	return &dispatch.Outcome{
		Response:  responseText("Enter your " + biller + " account or reference number."),
		NextState: dispatch.StateBillPaymentReference,
		Data:      models.DataBag{keyBillBiller: biller},
	}, nil
}

// billReference validates the reference with the biller through the ESB.
// Reads: bill_biller.
func (h *flows) billReference(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Enter your account or reference number.")}, nil
	}

	biller, _ := sess.DataString(keyBillBiller)
	bill, err := h.Banking.ValidateBill(ctx, biller, input(msg))
	if err != nil {
		if errors.Is(err, banking.ErrUpstream) {
			return &dispatch.Outcome{
				Response: responseText("We couldn't validate that reference. Please check it and try again."),
			}, nil
		}
		return nil, err
	}

	return &dispatch.Outcome{
		Response: responseText(fmt.Sprintf(
			"Bill for %s, amount due %.2f. Enter the amount to pay.", bill.Customer, bill.AmountDue)),
		NextState: dispatch.StateBillPaymentAmount,
		Data: models.DataBag{
			keyBillReference: bill.Reference,
			keyBillCustomer:  bill.Customer,
			keyBillAmountDue: bill.AmountDue,
		},
	}, nil
}

// billAmount captures the amount to pay. Reads: bill_amount_due.
func (h *flows) billAmount(_ context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText("Enter the amount to pay.")}, nil
	}

	amount, err := strconv.ParseFloat(input(msg), 64)
	if err != nil || amount <= 0 {
		return &dispatch.Outcome{Response: responseText("Enter a valid amount greater than zero.")}, nil
	}

	customer, _ := sess.DataString(keyBillCustomer)
	return &dispatch.Outcome{
		Response: responseText(fmt.Sprintf("Pay %.2f for %s?\n1. Confirm\n2. Cancel", amount, customer)),
		NextState: dispatch.StateBillPaymentConfirm,
		Data:      models.DataBag{keyBillAmount: amount},
	}, nil
}

// billConfirm settles the bill. Reads: bill_biller, bill_reference,
// bill_customer, bill_amount_due, bill_amount.
func (h *flows) billConfirm(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	switch input(msg) {
	case "1":
		customer, err := h.Gate.Customer(ctx, msg.Sender)
		if err != nil {
			return nil, err
		}

		biller, _ := sess.DataString(keyBillBiller)
		reference, _ := sess.DataString(keyBillReference)
		billCustomer, _ := sess.DataString(keyBillCustomer)
		amountDue, _ := sess.DataFloat(keyBillAmountDue)
		amount, ok := sess.DataFloat(keyBillAmount)
		if !ok || reference == "" {
			return &dispatch.Outcome{
				Response:  responseText("This payment is incomplete. Let's start again: select a biller."),
				NextState: dispatch.StateBillPaymentInit,
			}, nil
		}

		receipt, err := h.Banking.PayBill(ctx, customer.AccountNumber, banking.Bill{
			Reference: reference,
			Biller:    biller,
			Customer:  billCustomer,
			AmountDue: amountDue,
		}, amount)
		if err != nil {
			return nil, err
		}

		return h.backToWelcome(ctx, msg.Sender,
			fmt.Sprintf("Payment of %.2f for %s completed. Reference: %s.", amount, billCustomer, receipt.Reference),
			nil)
	case "2":
		return h.backToWelcome(ctx, msg.Sender, "Payment cancelled.", nil)
	default:
		return &dispatch.Outcome{Response: responseText("Reply 1 to confirm or 2 to cancel.")}, nil
	}
}
