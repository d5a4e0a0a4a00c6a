package handlers

import (
	"context"
	"errors"
	"strings"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
)

// Session data keys owned by the authentication flow.
const (
	keyPINAttempts = "pin_attempts"
)

// pinLogin handles the AUTHENTICATION state: the synchronous channel's PIN
// challenge. Reads: pending_input, pin_attempts.
func (h *flows) pinLogin(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText(dispatch.TextEnterPIN)}, nil
	}

	ok, err := h.Gate.VerifyPIN(ctx, msg.Sender, input(msg))
	if err != nil {
		if errors.Is(err, auth.ErrNotRegistered) {
			return h.backToWelcome(ctx, msg.Sender, "You are not registered for this service.", nil)
		}
		return nil, err
	}

	if !ok {
		attempts, _ := sess.DataFloat(keyPINAttempts)
		attempts++
		if int(attempts) >= h.Cfg.Dialogue.MaxPINAttempts {
			return &dispatch.Outcome{
				Response:   channel.Response{Text: "Too many incorrect PIN attempts. Goodbye.", Terminal: true},
				EndSession: true,
			}, nil
		}
		return &dispatch.Outcome{
			Response: responseText("Incorrect PIN. Please try again."),
			Data:     models.DataBag{keyPINAttempts: attempts},
		}, nil
	}

	return h.loginSucceeded(ctx, msg, sess)
}

// otpVerification handles the OTP_VERIFICATION state: the asynchronous
// channel's one-time-password challenge. Reads: pending_input.
func (h *flows) otpVerification(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if entryTurn(msg) {
		return &dispatch.Outcome{Response: responseText(dispatch.TextOTPSent)}, nil
	}

	if strings.EqualFold(input(msg), "resend") {
		code, err := h.Gate.IssueOTP(ctx, msg.Sender)
		if err != nil {
			return nil, err
		}
		h.deliverOTP(ctx, msg.Sender, code)
		return &dispatch.Outcome{Response: responseText("A new one-time password has been sent to you.")}, nil
	}

	status, err := h.Gate.VerifyOTP(ctx, msg.Sender, input(msg))
	if err != nil {
		return nil, err
	}

	switch status {
	case auth.OTPValid:
		return h.loginSucceeded(ctx, msg, sess)
	case auth.OTPExpired:
		// Correct or not, a stale code reads as expired and the session
		// stays here so the owner can request a fresh one.
		return &dispatch.Outcome{
			Response: responseText("That one-time password has expired. Reply RESEND to get a new one."),
		}, nil
	case auth.OTPNotFound:
		return &dispatch.Outcome{
			Response: responseText("No active one-time password found. Reply RESEND to get one."),
		}, nil
	default:
		return &dispatch.Outcome{
			Response: responseText("Incorrect one-time password. Please try again, or reply RESEND."),
		}, nil
	}
}

// loginSucceeded records the login and resumes the deferred intent against
// WELCOME, if one was stashed by the gate redirect.
func (h *flows) loginSucceeded(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
	if err := h.Gate.Login(ctx, msg.Sender, sess.ID); err != nil {
		return nil, err
	}

	pending, _ := sess.DataString(dispatch.KeyPendingInput)
	state, prompt := h.welcomeFor(ctx, msg.Sender)

	return &dispatch.Outcome{
		Response:  responseText("You are now logged in.\n\n" + prompt),
		NextState: state,
		// The stashed key is blanked, not removed: merges are additive.
		Data:   models.DataBag{dispatch.KeyPendingInput: "", keyPINAttempts: 0.0},
		Replay: pending,
	}, nil
}

// deliverOTP is best-effort: a failed push is logged and the challenge
// prompt still goes back on the inbound leg.
func (h *flows) deliverOTP(ctx context.Context, owner, code string) {
	if h.Notify == nil {
		h.Log.Warn("no notifier configured, otp not pushed", "owner", owner)
		return
	}
	if !h.Notify.Notify(ctx, owner, "Your one-time password is "+code) {
		h.Log.Error("otp push failed", "owner", owner)
	}
}
