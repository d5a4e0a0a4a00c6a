package dispatch

import "strings"

// Dialogue states. A state names which handler or menu governs the
// interpretation of the next input for a session.
const (
	StateWelcome             = "WELCOME"
	StateWelcomeUnregistered = "WELCOME_UNREGISTERED"
	StateHelp                = "HELP"

	StateAuthentication  = "AUTHENTICATION"
	StateOTPVerification = "OTP_VERIFICATION"

	StateRegistrationName    = "REGISTRATION_NAME"
	StateRegistrationAccount = "REGISTRATION_ACCOUNT"
	StateRegistrationPIN     = "REGISTRATION_PIN"
	StateRegistrationConfirm = "REGISTRATION_CONFIRM"

	StateTransferInit      = "TRANSFER_INIT"
	StateTransferRecipient = "TRANSFER_RECIPIENT"
	StateTransferAmount    = "TRANSFER_AMOUNT"
	StateTransferConfirm   = "TRANSFER_CONFIRM"

	StateBillPaymentInit      = "BILL_PAYMENT_INIT"
	StateBillPaymentReference = "BILL_PAYMENT_REFERENCE"
	StateBillPaymentAmount    = "BILL_PAYMENT_AMOUNT"
	StateBillPaymentConfirm   = "BILL_PAYMENT_CONFIRM"

	StateServicesMenu      = "SERVICES_MENU"
	StateServicesBalance   = "SERVICES_BALANCE"
	StateServicesStatement = "SERVICES_STATEMENT"
	StateServicesDetails   = "SERVICES_DETAILS"

	StateEnd = "END"
)

// AllStates is the complete state vocabulary, used to validate the menu
// table at startup.
var AllStates = []string{
	StateWelcome, StateWelcomeUnregistered, StateHelp,
	StateAuthentication, StateOTPVerification,
	StateRegistrationName, StateRegistrationAccount, StateRegistrationPIN, StateRegistrationConfirm,
	StateTransferInit, StateTransferRecipient, StateTransferAmount, StateTransferConfirm,
	StateBillPaymentInit, StateBillPaymentReference, StateBillPaymentAmount, StateBillPaymentConfirm,
	StateServicesMenu, StateServicesBalance, StateServicesStatement, StateServicesDetails,
	StateEnd,
}

// publicStates need no authentication; everything else is protected and must
// pass the gate before its handler runs.
var publicStates = map[string]bool{
	StateWelcome:             true,
	StateWelcomeUnregistered: true,
	StateHelp:                true,
	StateAuthentication:      true,
	StateOTPVerification:     true,
	StateEnd:                 true,
}

// Protected reports whether the state requires an authenticated owner.
// Registration states are public as a family.
func Protected(state string) bool {
	if publicStates[state] {
		return false
	}
	if strings.HasPrefix(state, "REGISTRATION_") {
		return false
	}
	return true
}
