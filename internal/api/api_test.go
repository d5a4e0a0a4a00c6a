package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/channel/ussd"
	"banking-chatbot/engine/internal/channel/whatsapp"
	"banking-chatbot/engine/internal/dedup"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/handlers"
	"banking-chatbot/engine/internal/models"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/jwt"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/secrets"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiGate is a minimal scriptable gate for endpoint tests.
type apiGate struct {
	authed     bool
	registered bool
	logouts    int
}

func (g *apiGate) IsAuthenticated(context.Context, string) (bool, error) { return g.authed, nil }
func (g *apiGate) Login(context.Context, string, string) error {
	g.authed = true
	return nil
}
func (g *apiGate) Logout(context.Context, string) error {
	g.authed = false
	g.logouts++
	return nil
}
func (g *apiGate) IssueOTP(context.Context, string) (string, error) { return "482913", nil }
func (g *apiGate) VerifyOTP(context.Context, string, string) (auth.OTPStatus, error) {
	return auth.OTPMismatch, nil
}
func (g *apiGate) VerifyPIN(context.Context, string, string) (bool, error) { return true, nil }
func (g *apiGate) IsRegistered(context.Context, string) (bool, error)      { return g.registered, nil }
func (g *apiGate) Customer(context.Context, string) (*models.Customer, error) {
	return &models.Customer{Owner: "255700000001", AccountNumber: "100200300"}, nil
}
func (g *apiGate) Register(context.Context, string, string, string, string) error { return nil }

type ussdHarness struct {
	engine *gin.Engine
	store  *session.MemoryStore
	gate   *apiGate
}

func newUSSDHarness(t *testing.T) *ussdHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	gate := &apiGate{registered: true}
	log := logger.GetGlobal()

	adapter := ussd.New(store, config.ChannelCapabilities{
		SessionTTL:    90 * time.Second,
		SlidingExpiry: true,
		Login:         config.LoginPIN,
	}, log)

	menus := handlers.Menus()
	registry := handlers.NewRegistry(handlers.Deps{
		Gate:  gate,
		Menus: menus,
		Cfg:   config.New(),
		Log:   log,
	})
	d, err := dispatch.New(registry, menus, gate, config.New(), log)
	require.NoError(t, err)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewUSSDController(adapter, d, dedup.NewMemoryDeduplicator(time.Hour), log).RegisterRoutesV1(v1)

	return &ussdHarness{engine: engine, store: store, gate: gate}
}

func (h *ussdHarness) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/channels/ussd/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func TestUSSDFirstDialRendersWelcome(t *testing.T) {
	h := newUSSDHarness(t)

	w := h.post(`{"sessionId":"gw-1","msisdn":"255700000001","serviceCode":"*150*00#","text":"","requestId":"r1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "CON "), body)
	assert.Contains(t, body, "Welcome to MwangaBank")
}

func TestUSSDExitTokenEndsSession(t *testing.T) {
	h := newUSSDHarness(t)

	h.post(`{"sessionId":"gw-2","msisdn":"255700000001","serviceCode":"*150*00#","text":"","requestId":"r1"}`)
	w := h.post(`{"sessionId":"gw-2","msisdn":"255700000001","serviceCode":"*150*00#","text":"0","requestId":"r2"}`)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "END "), body)
	assert.Contains(t, body, "Goodbye")
	assert.Equal(t, 1, h.gate.logouts)
}

func TestUSSDDuplicateRequestIsDropped(t *testing.T) {
	h := newUSSDHarness(t)

	first := h.post(`{"sessionId":"gw-3","msisdn":"255700000001","serviceCode":"*150*00#","text":"","requestId":"r1"}`)
	assert.Contains(t, first.Body.String(), "Welcome")

	replay := h.post(`{"sessionId":"gw-3","msisdn":"255700000001","serviceCode":"*150*00#","text":"","requestId":"r1"}`)
	assert.True(t, strings.HasPrefix(replay.Body.String(), "END "))
	assert.NotContains(t, replay.Body.String(), "Welcome")
}

func TestUSSDMalformedRequestAnswersEndFrame(t *testing.T) {
	h := newUSSDHarness(t)

	w := h.post(`{"text":"1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "END Invalid request.", w.Body.String())
}

func TestUSSDProtectedSelectionAsksForPIN(t *testing.T) {
	h := newUSSDHarness(t)
	h.gate.authed = false

	h.post(`{"sessionId":"gw-4","msisdn":"255700000001","serviceCode":"*150*00#","text":"","requestId":"r1"}`)
	w := h.post(`{"sessionId":"gw-4","msisdn":"255700000001","serviceCode":"*150*00#","text":"2","requestId":"r2"}`)

	assert.Contains(t, w.Body.String(), "enter your PIN")
}

func newWebhookHarness(t *testing.T, providerURL string) (*gin.Engine, *apiGate) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	gate := &apiGate{registered: true, authed: true}
	log := logger.GetGlobal()
	cfg := config.New()

	sm := secrets.NewStaticManager(map[string]string{secrets.KeyProviderToken: "test-token"})
	provider := whatsapp.NewProviderClient(providerURL, "biz-1", sm, time.Second, log)
	adapter := whatsapp.New(store, config.ChannelCapabilities{
		SessionTTL:      5 * time.Minute,
		SlidingExpiry:   false,
		Login:           config.LoginOTP,
		DeliveryTimeout: time.Second,
	}, provider, log)

	menus := handlers.Menus()
	registry := handlers.NewRegistry(handlers.Deps{
		Gate:   gate,
		Menus:  menus,
		Notify: provider,
		Cfg:    cfg,
		Log:    log,
	})
	d, err := dispatch.New(registry, menus, gate, cfg, log)
	require.NoError(t, err)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewWhatsAppController(adapter, d, dedup.NewMemoryDeduplicator(time.Hour), cfg, log).RegisterRoutesV1(v1)
	return engine, gate
}

func postWebhook(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/channels/whatsapp/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func webhookBody(id, text string) string {
	return `{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"biz-1"},"messages":[{"id":"` + id + `","from":"255700000001","timestamp":"1735000000","type":"text","text":{"body":"` + text + `"}}]}}]}]}`
}

func TestWebhookDeliversReplyOutOfBand(t *testing.T) {
	var deliveries []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		deliveries = append(deliveries, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	engine, _ := newWebhookHarness(t, upstream.URL)

	w := postWebhook(engine, webhookBody("wamid.10", "hi"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
	require.Len(t, deliveries, 1)
	assert.Equal(t, "/biz-1/messages", deliveries[0])
}

func TestWebhookDuplicateIsAcknowledgedWithoutDispatch(t *testing.T) {
	deliveries := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	engine, _ := newWebhookHarness(t, upstream.URL)

	postWebhook(engine, webhookBody("wamid.11", "hi"))
	w := postWebhook(engine, webhookBody("wamid.11", "hi"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, deliveries, "the replay never reaches dispatch or delivery")
}

func TestWebhookMalformedPayloadStillAcknowledged(t *testing.T) {
	engine, _ := newWebhookHarness(t, "http://127.0.0.1:0")

	w := postWebhook(engine, `{"entry":[]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
}

func TestWebhookVerificationHandshake(t *testing.T) {
	engine, _ := newWebhookHarness(t, "http://127.0.0.1:0")

	cfg := config.New()
	prev := cfg.Provider.VerifyToken
	cfg.Provider.VerifyToken = "hook-secret"
	defer func() { cfg.Provider.VerifyToken = prev }()

	verify := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/channels/whatsapp/webhook?hub.mode=subscribe&hub.verify_token="+token+"&hub.challenge=12345", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := verify("hook-secret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())

	assert.Equal(t, http.StatusForbidden, verify("wrong").Code)

	// An unconfigured token must not match an empty supplied one.
	cfg.Provider.VerifyToken = ""
	assert.Equal(t, http.StatusForbidden, verify("").Code)
}

func newOpsHarness(t *testing.T) (*gin.Engine, *session.MemoryStore, *apiGate, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore()
	gate := &apiGate{}
	log := logger.GetGlobal()

	svc := jwt.NewService("ops-test-secret", time.Hour)
	token, err := svc.GenerateToken("ops-admin")
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(errors.ErrorHandler())
	ops := engine.Group("/api/v1/ops", jwt.AuthMiddleware(svc, log))
	NewOpsController(store, gate, log).RegisterRoutes(ops)
	return engine, store, gate, token
}

func opsRequest(engine *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestOpsEndpointsRequireBearerToken(t *testing.T) {
	engine, _, _, token := newOpsHarness(t)

	assert.Equal(t, http.StatusUnauthorized,
		opsRequest(engine, http.MethodGet, "/api/v1/ops/sessions/abc", "").Code)

	w := opsRequest(engine, http.MethodGet, "/api/v1/ops/sessions/abc", token)
	assert.Equal(t, http.StatusNotFound, w.Code, "a valid token reaches the controller")
}

func TestOpsSessionLookup(t *testing.T) {
	engine, store, _, token := newOpsHarness(t)

	sess, err := store.Create(context.Background(), ussd.ChannelName, "255700000001", "WELCOME", nil, time.Minute)
	require.NoError(t, err)

	w := opsRequest(engine, http.MethodGet, "/api/v1/ops/sessions/"+sess.ID, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sess.ID)

	w = opsRequest(engine, http.MethodGet, "/api/v1/ops/sessions/no-such-id", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeSessionNotFound)
}

func TestOpsForceLogoutEndsSessionsOnBothChannels(t *testing.T) {
	engine, store, gate, token := newOpsHarness(t)
	ctx := context.Background()

	_, err := store.Create(ctx, ussd.ChannelName, "255700000001", "WELCOME", nil, time.Minute)
	require.NoError(t, err)
	_, err = store.Create(ctx, whatsapp.ChannelName, "255700000001", "WELCOME", nil, time.Minute)
	require.NoError(t, err)

	w := opsRequest(engine, http.MethodPost, "/api/v1/ops/owners/255700000001/logout", token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions_ended":2`)
	assert.Equal(t, 1, gate.logouts)

	for _, ch := range []string{ussd.ChannelName, whatsapp.ChannelName} {
		active, err := store.GetActiveByOwner(ctx, ch, "255700000001")
		require.NoError(t, err)
		assert.Nil(t, active)
	}
}
