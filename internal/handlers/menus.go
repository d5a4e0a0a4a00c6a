package handlers

import (
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/menu"
)

// Menus builds the static menu table. Plain navigation screens live here;
// adding one is a table entry, not dispatcher code.
func Menus() *menu.Registry {
	table := map[string]menu.Entry{
		dispatch.StateWelcome: {
			Prompt: "Welcome to MwangaBank. Choose an option:",
			Options: map[string]menu.Option{
				"1": {Label: "Check balance", Next: dispatch.StateServicesBalance},
				"2": {Label: "Transfer money", Next: dispatch.StateTransferInit},
				"3": {Label: "Pay a bill", Next: dispatch.StateBillPaymentInit},
				"4": {Label: "Account services", Next: dispatch.StateServicesMenu},
				"5": {Label: "Help", Next: dispatch.StateHelp},
			},
		},
		dispatch.StateWelcomeUnregistered: {
			Prompt: "Welcome to MwangaBank. You are not registered yet. Choose an option:",
			Options: map[string]menu.Option{
				"1": {Label: "Register", Next: dispatch.StateRegistrationName},
				"2": {Label: "Help", Next: dispatch.StateHelp},
			},
		},
		dispatch.StateServicesMenu: {
			Prompt: "Account services:",
			Options: map[string]menu.Option{
				"1": {Label: "Balance inquiry", Next: dispatch.StateServicesBalance},
				"2": {Label: "Mini statement", Next: dispatch.StateServicesStatement},
				"3": {Label: "Account details", Next: dispatch.StateServicesDetails},
			},
		},
	}
	return menu.NewRegistry(table, dispatch.AllStates)
}
