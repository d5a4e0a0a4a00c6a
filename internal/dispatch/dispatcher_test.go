package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/channel"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/menu"
	"banking-chatbot/engine/internal/message"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGate is a scriptable auth.Gate.
type fakeGate struct {
	authed     bool
	registered bool
	otpCode    string
	logins     int
	logouts    int
}

func (g *fakeGate) IsAuthenticated(context.Context, string) (bool, error) { return g.authed, nil }
func (g *fakeGate) Login(context.Context, string, string) error {
	g.authed = true
	g.logins++
	return nil
}
func (g *fakeGate) Logout(context.Context, string) error {
	g.authed = false
	g.logouts++
	return nil
}
func (g *fakeGate) IssueOTP(context.Context, string) (string, error) { return g.otpCode, nil }
func (g *fakeGate) VerifyOTP(_ context.Context, _ string, code string) (auth.OTPStatus, error) {
	if code == g.otpCode {
		return auth.OTPValid, nil
	}
	return auth.OTPMismatch, nil
}
func (g *fakeGate) VerifyPIN(context.Context, string, string) (bool, error) { return false, nil }
func (g *fakeGate) IsRegistered(context.Context, string) (bool, error)      { return g.registered, nil }
func (g *fakeGate) Customer(context.Context, string) (*models.Customer, error) {
	if !g.registered {
		return nil, auth.ErrNotRegistered
	}
	return &models.Customer{Owner: "owner", AccountNumber: "100200300"}, nil
}
func (g *fakeGate) Register(context.Context, string, string, string, string) error {
	g.registered = true
	return nil
}

// testAdapter is a channel.Adapter over the in-memory store with separately
// tunable store TTL and idle window.
type testAdapter struct {
	store      session.Store
	caps       config.ChannelCapabilities
	storeTTL   time.Duration
	deliveries []string
}

func (a *testAdapter) Name() string                             { return "testchan" }
func (a *testAdapter) Capabilities() config.ChannelCapabilities { return a.caps }
func (a *testAdapter) Parse([]byte) (*message.Message, error)   { return nil, nil }
func (a *testAdapter) Format(channel.Response) []byte           { return nil }
func (a *testAdapter) FindSession(ctx context.Context, msg *message.Message) (*models.Session, error) {
	return a.store.GetActiveByOwner(ctx, a.Name(), msg.Sender)
}
func (a *testAdapter) CreateSession(ctx context.Context, owner, state string, data models.DataBag) (*models.Session, error) {
	return a.store.Create(ctx, a.Name(), owner, state, data, a.storeTTL)
}
func (a *testAdapter) UpdateSession(ctx context.Context, id string, patch session.Patch) (bool, error) {
	return a.store.Update(ctx, id, patch)
}
func (a *testAdapter) EndSession(ctx context.Context, id string) (bool, error) {
	return a.store.End(ctx, id)
}
func (a *testAdapter) Deliver(_ context.Context, _ string, resp channel.Response) bool {
	a.deliveries = append(a.deliveries, resp.Text)
	return true
}

// fixture bundles a dispatcher over scriptable fakes and a minimal menu
// table that still exercises protected and handler-backed targets.
type fixture struct {
	dispatcher *dispatch.Dispatcher
	adapter    *testAdapter
	gate       *fakeGate
	store      session.Store
	menus      *menu.Registry
	invoked    map[string][]string // state → contents seen
}

func newFixture(t *testing.T, registry dispatch.Registry) *fixture {
	t.Helper()

	table := map[string]menu.Entry{
		dispatch.StateWelcome: {
			Prompt: "Main menu:",
			Options: map[string]menu.Option{
				"1": {Label: "Balance", Next: dispatch.StateServicesBalance},
				"2": {Label: "Transfer", Next: dispatch.StateTransferInit},
				"3": {Label: "Services", Next: dispatch.StateServicesMenu},
				"4": {Label: "Help", Next: dispatch.StateHelp},
			},
		},
		dispatch.StateWelcomeUnregistered: {
			Prompt: "You are not registered:",
			Options: map[string]menu.Option{
				"1": {Label: "Register", Next: dispatch.StateRegistrationName},
			},
		},
		dispatch.StateServicesMenu: {
			Prompt: "Services:",
			Options: map[string]menu.Option{
				"1": {Label: "Balance", Next: dispatch.StateServicesBalance},
			},
		},
	}
	menus := menu.NewRegistry(table, dispatch.AllStates)

	f := &fixture{
		gate:    &fakeGate{registered: true, otpCode: "482913"},
		store:   session.NewMemoryStore(),
		menus:   menus,
		invoked: make(map[string][]string),
	}
	f.adapter = &testAdapter{
		store:    f.store,
		storeTTL: time.Hour,
		caps: config.ChannelCapabilities{
			SessionTTL:      time.Hour,
			SlidingExpiry:   true,
			Login:           config.LoginPIN,
			DeliveryTimeout: time.Second,
		},
	}

	d, err := dispatch.New(registry, menus, f.gate, config.New(), logger.GetGlobal())
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

// recording wraps a handler so the fixture tracks what content it saw.
func (f *fixture) recording(state string, h dispatch.Handler) dispatch.Handler {
	return func(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
		f.invoked[state] = append(f.invoked[state], msg.Content)
		return h(ctx, msg, sess)
	}
}

func inbound(t *testing.T, owner, content string) *message.Message {
	t.Helper()
	msg, err := message.New(owner, "msg-"+owner+"-"+content, owner, "svc", content, message.TypeText, time.Now(), nil)
	require.NoError(t, err)
	return msg
}

func TestFirstContactRendersWelcomeMenu(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})

	resp := f.dispatcher.Dispatch(context.Background(), f.adapter, inbound(t, "owner-a", "hi"))

	assert.Equal(t, f.menus.Render(dispatch.StateWelcome), resp.Text)
	sess, err := f.store.GetActiveByOwner(context.Background(), "testchan", "owner-a")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, dispatch.StateWelcome, sess.State)
}

func TestFirstContactUnregisteredOwner(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.registered = false

	resp := f.dispatcher.Dispatch(context.Background(), f.adapter, inbound(t, "owner-b", "hi"))

	assert.Equal(t, f.menus.Render(dispatch.StateWelcomeUnregistered), resp.Text)
}

func TestMenuSelectionEntersHandlerStateWithClearedContent(t *testing.T) {
	var f *fixture
	registry := dispatch.Registry{}
	f = newFixture(t, registry)
	registry[dispatch.StateHelp] = f.recording(dispatch.StateHelp,
		func(context.Context, *message.Message, *models.Session) (*dispatch.Outcome, error) {
			return &dispatch.Outcome{Response: channel.Response{Text: "help text"}}, nil
		})

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-c", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-c", "4"))

	assert.Equal(t, "help text", resp.Text)
	require.Len(t, f.invoked[dispatch.StateHelp], 1)
	assert.Empty(t, f.invoked[dispatch.StateHelp][0], "entry turn carries cleared content")
}

func TestMenuSelectionByLabel(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = true

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-d", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-d", "services"))

	assert.Equal(t, f.menus.Render(dispatch.StateServicesMenu), resp.Text)
}

func TestInvalidSelectionReprompts(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = true

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-e", "hi"))

	// Every unmatched input re-prompts with the invalid prefix, including
	// consecutive ones straight after the session was created.
	first := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-e", "99"))
	second := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-e", "98"))

	assert.Equal(t, f.menus.RenderInvalid(dispatch.StateWelcome), first.Text)
	assert.Equal(t, f.menus.RenderInvalid(dispatch.StateWelcome), second.Text)
}

func TestExitTokenEndsSessionAndLogsOut(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = true

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-f", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-f", "0"))

	assert.Equal(t, dispatch.TextGoodbye, resp.Text)
	assert.True(t, resp.Terminal)
	assert.Equal(t, 1, f.gate.logouts)

	sess, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-f")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestMainMenuTokenSupersedesSession(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = true

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-g", "hi"))
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-g", "3"))
	first, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-g")
	require.NoError(t, err)
	require.NotNil(t, first)

	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-g", "00"))

	assert.Equal(t, f.menus.Render(dispatch.StateWelcome), resp.Text)
	second, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-g")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, dispatch.StateWelcome, second.State)
}

func TestAbsoluteIdleWindowExpiresSession(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.adapter.caps.SlidingExpiry = false
	f.adapter.caps.SessionTTL = 10 * time.Millisecond

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-h", "hi"))
	time.Sleep(25 * time.Millisecond)
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-h", "1"))

	assert.Equal(t, dispatch.TextSessionExpired, resp.Text)
	assert.True(t, resp.Terminal)

	sess, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-h")
	require.NoError(t, err)
	assert.Nil(t, sess, "stale session is ended, not resumed")
}

func TestProtectedSelectionRedirectsToPIN(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = false

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-i", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-i", "2"))

	assert.Equal(t, dispatch.TextEnterPIN, resp.Text)

	sess, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-i")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, dispatch.StateAuthentication, sess.State)
	pending, _ := sess.DataString(dispatch.KeyPendingInput)
	assert.Equal(t, "2", pending, "the triggering selection is deferred")
}

func TestProtectedSelectionRedirectsToOTPWithOutOfBandCode(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})
	f.gate.authed = false
	f.adapter.caps.Login = config.LoginOTP

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-j", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-j", "1"))

	assert.Equal(t, dispatch.TextOTPSent, resp.Text)
	require.Len(t, f.adapter.deliveries, 1)
	assert.Contains(t, f.adapter.deliveries[0], f.gate.otpCode, "the code travels out-of-band only")
	assert.NotContains(t, resp.Text, f.gate.otpCode)

	sess, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-j")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, dispatch.StateOTPVerification, sess.State)
}

func TestLoginReplayResumesDeferredIntent(t *testing.T) {
	var f *fixture
	registry := dispatch.Registry{}
	f = newFixture(t, registry)
	f.gate.authed = false

	// Successful authentication logs in and replays the stash.
	registry[dispatch.StateAuthentication] = func(ctx context.Context, msg *message.Message, sess *models.Session) (*dispatch.Outcome, error) {
		if err := f.gate.Login(ctx, msg.Sender, sess.ID); err != nil {
			return nil, err
		}
		pending, _ := sess.DataString(dispatch.KeyPendingInput)
		return &dispatch.Outcome{
			Response:  channel.Response{Text: "logged in"},
			NextState: dispatch.StateWelcome,
			Replay:    pending,
		}, nil
	}
	registry[dispatch.StateTransferInit] = f.recording(dispatch.StateTransferInit,
		func(context.Context, *message.Message, *models.Session) (*dispatch.Outcome, error) {
			return &dispatch.Outcome{Response: channel.Response{Text: "select transfer type"}}, nil
		})

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-k", "hi"))
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-k", "2")) // deferred by gate
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-k", "1234"))

	// The replayed "2" resolves on WELCOME and lands in the transfer flow.
	assert.Equal(t, "select transfer type", resp.Text)
	require.Len(t, f.invoked[dispatch.StateTransferInit], 1)
	assert.Equal(t, 1, f.gate.logins)
}

func TestHandlerPanicProducesRetryResponse(t *testing.T) {
	var f *fixture
	registry := dispatch.Registry{}
	f = newFixture(t, registry)
	registry[dispatch.StateHelp] = func(context.Context, *message.Message, *models.Session) (*dispatch.Outcome, error) {
		panic("boom")
	}

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-l", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-l", "4"))

	assert.Equal(t, dispatch.TextTryAgain, resp.Text)
}

func TestHandlerErrorHoldsState(t *testing.T) {
	var f *fixture
	registry := dispatch.Registry{}
	f = newFixture(t, registry)
	registry[dispatch.StateHelp] = func(context.Context, *message.Message, *models.Session) (*dispatch.Outcome, error) {
		return nil, errors.New("upstream down")
	}

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-m", "hi"))
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-m", "4"))

	sess, err := f.store.GetActiveByOwner(ctx, "testchan", "owner-m")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, dispatch.StateHelp, sess.State, "a failing handler never advances state")
}

func TestMissingHandlerProducesRetryResponse(t *testing.T) {
	f := newFixture(t, dispatch.Registry{})

	ctx := context.Background()
	f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-n", "hi"))
	resp := f.dispatcher.Dispatch(ctx, f.adapter, inbound(t, "owner-n", "4"))

	assert.Equal(t, dispatch.TextTryAgain, resp.Text)
}

func TestNewRejectsInvalidMenuTable(t *testing.T) {
	table := map[string]menu.Entry{
		dispatch.StateWelcome: {
			Prompt:  "Menu:",
			Options: map[string]menu.Option{"1": {Label: "Ghost", Next: "NO_SUCH_STATE"}},
		},
	}
	menus := menu.NewRegistry(table, dispatch.AllStates)

	_, err := dispatch.New(dispatch.Registry{}, menus, &fakeGate{}, config.New(), logger.GetGlobal())
	assert.Error(t, err)
}
