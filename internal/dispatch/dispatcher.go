// Package dispatch contains the dialogue state machine. Given the current
// state and a canonical message it either consults the menu registry or
// invokes the named state handler, then persists the transition. Every code
// path terminates in a formatted response.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/menu"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Session data keys owned by the dispatcher.
const (
	// KeyPendingInput stores input deferred by an authentication redirect.
	// Login success replays it against WELCOME.
	KeyPendingInput = "pending_input"
)

// User-facing texts for dispatcher-level outcomes.
const (
	TextGoodbye        = "Thank you for banking with us. Goodbye."
	TextSessionExpired = "Your session has expired. Send any message to start again."
	TextTryAgain       = "Something went wrong. Please try again."
	TextEnterPIN       = "Please enter your PIN to continue."
	TextOTPSent        = "For your security, enter the one-time password we just sent you."
)

// Outcome is what a state handler returns for one turn.
type Outcome struct {
	// Response is returned to the user through the adapter.
	Response channel.Response
	// NextState is persisted when non-empty; empty leaves the state as-is.
	NextState string
	// Data is merged additively into the session bag.
	Data models.DataBag
	// EndSession ends the session after the response is computed.
	EndSession bool
	// Replay asks the dispatcher to re-dispatch this content once the
	// outcome is persisted. Used to resume a deferred intent after login.
	Replay string
}

// Handler is one state's turn function: pure in (message, session), with
// collaborators bound at construction.
type Handler func(ctx context.Context, msg *message.Message, sess *models.Session) (*Outcome, error)

// Registry maps state names to handlers.
type Registry map[string]Handler

// Dispatcher is the state machine core.
type Dispatcher struct {
	handlers Registry
	menus    *menu.Registry
	gate     auth.Gate
	cfg      *config.Config
	log      *logger.Logger
}

// New wires a dispatcher. The menu table is validated at startup; an invalid
// table is a programming error and refuses to boot.
func New(handlers Registry, menus *menu.Registry, gate auth.Gate, cfg *config.Config, log *logger.Logger) (*Dispatcher, error) {
	if err := menus.Validate(); err != nil {
		return nil, fmt.Errorf("menu table invalid: %w", err)
	}
	return &Dispatcher{
		handlers: handlers,
		menus:    menus,
		gate:     gate,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Dispatch runs the transition algorithm for one admitted message and always
// returns a response the adapter can format.
func (d *Dispatcher) Dispatch(ctx context.Context, ad channel.Adapter, msg *message.Message) channel.Response {
	timer := prometheus.NewTimer(metrics.DispatchDuration.WithLabelValues(ad.Name()))
	defer timer.ObserveDuration()
	return d.dispatch(ctx, ad, msg, 0)
}

func (d *Dispatcher) dispatch(ctx context.Context, ad channel.Adapter, msg *message.Message, depth int) channel.Response {
	log := d.log.WithChannel(ad.Name()).WithOwner(msg.Sender)
	content := strings.TrimSpace(msg.Content)

	// Reserved exit token: end session, deactivate login, terminal goodbye.
	if depth == 0 && content == d.cfg.Dialogue.ExitToken {
		if sess, err := ad.FindSession(ctx, msg); err == nil && sess != nil {
			if _, err := ad.EndSession(ctx, sess.ID); err != nil {
				log.LogError(err, "failed to end session on exit", "session_id", sess.ID)
			}
		}
		if err := d.gate.Logout(ctx, msg.Sender); err != nil {
			log.LogError(err, "failed to deactivate login on exit")
		}
		metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeExit).Inc()
		return channel.Response{Text: TextGoodbye, Terminal: true}
	}

	// Reserved main-menu token: supersede the current session with a fresh
	// WELCOME one.
	if depth == 0 && content == d.cfg.Dialogue.MainMenuToken {
		return d.startFresh(ctx, ad, msg, log)
	}

	sess, err := ad.FindSession(ctx, msg)
	if err != nil {
		log.LogError(err, "session lookup failed")
		return channel.Response{Text: TextTryAgain}
	}

	// No session: create one in WELCOME and treat this as the first turn.
	if sess == nil {
		return d.startFresh(ctx, ad, msg, log)
	}

	// Absolute idle window for channels without sliding expiry. Sliding
	// channels never surface stale sessions from the store.
	caps := ad.Capabilities()
	if !caps.SlidingExpiry && time.Since(sess.UpdatedAt) > caps.SessionTTL {
		if _, err := ad.EndSession(ctx, sess.ID); err != nil {
			log.LogError(err, "failed to end stale session", "session_id", sess.ID)
		}
		metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeExpired).Inc()
		return channel.Response{Text: TextSessionExpired, Terminal: true}
	}

	log = log.WithSession(sess.ID)

	// Gate the current state before anything runs on it.
	if Protected(sess.State) {
		authed, err := d.gate.IsAuthenticated(ctx, msg.Sender)
		if err != nil {
			log.LogError(err, "gate check failed")
			return channel.Response{Text: TextTryAgain}
		}
		if !authed {
			return d.redirectToLogin(ctx, ad, msg, sess, content, log)
		}
	}

	// Menu hub: resolve declaratively instead of invoking handler code.
	if d.menus.Has(sess.State) {
		return d.resolveMenu(ctx, ad, msg, sess, content, depth, log)
	}

	return d.invoke(ctx, ad, msg, sess, sess.State, depth, log)
}

// startFresh ends any active session for the owner and opens a new one in
// the appropriate welcome state, rendering its menu as the first turn.
func (d *Dispatcher) startFresh(ctx context.Context, ad channel.Adapter, msg *message.Message, log *logger.Logger) channel.Response {
	if sess, err := ad.FindSession(ctx, msg); err == nil && sess != nil {
		if _, err := ad.EndSession(ctx, sess.ID); err != nil {
			log.LogError(err, "failed to end superseded session", "session_id", sess.ID)
		}
	}

	state := StateWelcome
	registered, err := d.gate.IsRegistered(ctx, msg.Sender)
	if err != nil {
		log.LogError(err, "registration check failed")
		return channel.Response{Text: TextTryAgain}
	}
	if !registered {
		state = StateWelcomeUnregistered
	}

	if _, err := ad.CreateSession(ctx, msg.Sender, state, nil); err != nil {
		log.LogError(err, "session create failed")
		return channel.Response{Text: TextTryAgain}
	}

	metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeMenu).Inc()
	return channel.Response{Text: d.menus.Render(state)}
}

// redirectToLogin defers the original input and routes the owner into the
// channel's login entry point.
func (d *Dispatcher) redirectToLogin(ctx context.Context, ad channel.Adapter, msg *message.Message, sess *models.Session, pending string, log *logger.Logger) channel.Response {
	caps := ad.Capabilities()
	metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeRedirect).Inc()

	patch := session.Patch{Data: models.DataBag{KeyPendingInput: pending}}

	switch caps.Login {
	case config.LoginOTP:
		code, err := d.gate.IssueOTP(ctx, msg.Sender)
		if err != nil {
			log.LogError(err, "otp issue failed")
			return channel.Response{Text: TextTryAgain}
		}
		// The code travels out-of-band; the inbound reply only carries
		// the challenge prompt.
		ad.Deliver(ctx, msg.Sender, channel.Response{Text: "Your one-time password is " + code})
		patch.State = StateOTPVerification
		if ok, err := ad.UpdateSession(ctx, sess.ID, patch); err != nil || !ok {
			log.Error("failed to persist otp redirect", "session_id", sess.ID, "error", err)
			return channel.Response{Text: TextTryAgain}
		}
		return channel.Response{Text: TextOTPSent}

	default: // PIN challenge
		patch.State = StateAuthentication
		if ok, err := ad.UpdateSession(ctx, sess.ID, patch); err != nil || !ok {
			log.Error("failed to persist pin redirect", "session_id", sess.ID, "error", err)
			return channel.Response{Text: TextTryAgain}
		}
		return channel.Response{Text: TextEnterPIN}
	}
}

// resolveMenu handles one turn on a menu-driven state.
func (d *Dispatcher) resolveMenu(ctx context.Context, ad channel.Adapter, msg *message.Message, sess *models.Session, content string, depth int, log *logger.Logger) channel.Response {
	next, ok := d.menus.Resolve(sess.State, content)
	if !ok {
		// Empty content marks an entry turn and renders the menu plain;
		// any other unmatched input re-prompts with the invalid prefix.
		metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeMenu).Inc()
		if content == "" {
			return channel.Response{Text: d.menus.Render(sess.State)}
		}
		return channel.Response{Text: d.menus.RenderInvalid(sess.State)}
	}

	// Entering a protected state also passes the gate, deferring the
	// selection that triggered it.
	if Protected(next) {
		authed, err := d.gate.IsAuthenticated(ctx, msg.Sender)
		if err != nil {
			log.LogError(err, "gate check failed")
			return channel.Response{Text: TextTryAgain}
		}
		if !authed {
			return d.redirectToLogin(ctx, ad, msg, sess, content, log)
		}
	}

	ok, err := ad.UpdateSession(ctx, sess.ID, session.Patch{State: next})
	if err != nil {
		log.LogError(err, "menu transition persist failed", "next_state", next)
		return channel.Response{Text: TextTryAgain}
	}
	if !ok {
		return d.startFresh(ctx, ad, msg, log)
	}

	metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeMenu).Inc()

	if d.menus.Has(next) {
		return channel.Response{Text: d.menus.Render(next)}
	}

	// Handler-backed target: invoke it on an entry turn with cleared
	// content so the handler renders its opening prompt.
	sess.State = next
	return d.invoke(ctx, ad, msg.WithContent(""), sess, next, depth, log)
}

// invoke runs the named state handler with a panic boundary and persists its
// outcome. A failing handler never advances state and the user always gets a
// response.
func (d *Dispatcher) invoke(ctx context.Context, ad channel.Adapter, msg *message.Message, sess *models.Session, state string, depth int, log *logger.Logger) channel.Response {
	handler, ok := d.handlers[state]
	if !ok {
		log.Error("no handler registered for state", "state", state)
		metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeFailure).Inc()
		return channel.Response{Text: TextTryAgain}
	}

	outcome, err := d.safeInvoke(ctx, handler, msg, sess)
	if err != nil {
		log.LogError(errors.NewHandlerFailureError(state, err), "handler failed", "state", state)
		metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeFailure).Inc()
		return channel.Response{Text: TextTryAgain}
	}

	if outcome.NextState != "" || len(outcome.Data) > 0 {
		ok, err := ad.UpdateSession(ctx, sess.ID, session.Patch{State: outcome.NextState, Data: outcome.Data})
		if err != nil {
			log.LogError(err, "transition persist failed", "state", state, "next_state", outcome.NextState)
			return channel.Response{Text: TextTryAgain}
		}
		if !ok {
			return d.startFresh(ctx, ad, msg, log)
		}
	}

	if outcome.EndSession {
		if _, err := ad.EndSession(ctx, sess.ID); err != nil {
			log.LogError(err, "failed to end session", "session_id", sess.ID)
		}
	}

	metrics.MessagesTotal.WithLabelValues(ad.Name(), metrics.OutcomeHandled).Inc()

	// Deferred-intent resume: one replay depth is enough because the
	// replayed input lands on WELCOME, which never replays again.
	if outcome.Replay != "" && depth < 1 {
		return d.dispatch(ctx, ad, msg.WithContent(outcome.Replay), depth+1)
	}

	return outcome.Response
}

// safeInvoke converts handler panics into errors at the dispatcher boundary.
func (d *Dispatcher) safeInvoke(ctx context.Context, handler Handler, msg *message.Message, sess *models.Session) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	outcome, err = handler(ctx, msg, sess)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, fmt.Errorf("handler returned no outcome")
	}
	return outcome, nil
}
