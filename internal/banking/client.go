// Package banking is the boundary to the core-banking/ESB system. State
// handlers call it for real work; the engine only depends on this interface.
package banking

import (
	"context"
	"errors"
)

// ErrUpstream marks any ESB-side failure. Handlers convert it into a generic
// retry message without advancing state.
var ErrUpstream = errors.New("core banking request failed")

// Account is the ESB view of a customer account.
type Account struct {
	Number   string `json:"number"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// StatementEntry is one line of a mini statement.
type StatementEntry struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Bill is a validated biller reference.
type Bill struct {
	Reference string  `json:"reference"`
	Biller    string  `json:"biller"`
	Customer  string  `json:"customer"`
	AmountDue float64 `json:"amount_due"`
}

// TransferRequest describes one money movement.
type TransferRequest struct {
	FromAccount string  `json:"from_account"`
	ToAccount   string  `json:"to_account"`
	Amount      float64 `json:"amount"`
	Narration   string  `json:"narration"`
}

// Receipt is the ESB acknowledgement of a transfer or bill payment.
type Receipt struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Client is the contract every handler uses. All calls are context-bound and
// carry the configured request timeout; a timeout is a failure.
type Client interface {
	// AccountLookup resolves an account number to its ESB record.
	AccountLookup(ctx context.Context, accountNumber string) (*Account, error)

	// Balance returns the available balance for the account.
	Balance(ctx context.Context, accountNumber string) (float64, string, error)

	// MiniStatement returns the most recent entries for the account.
	MiniStatement(ctx context.Context, accountNumber string) ([]StatementEntry, error)

	// Transfer moves money between accounts.
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)

	// ValidateBill resolves a biller reference before payment.
	ValidateBill(ctx context.Context, biller, reference string) (*Bill, error)

	// PayBill settles a validated bill.
	PayBill(ctx context.Context, fromAccount string, bill Bill, amount float64) (*Receipt, error)
}
