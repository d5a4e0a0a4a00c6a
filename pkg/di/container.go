package di

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"banking-chatbot/engine/internal/auth"
	"banking-chatbot/engine/internal/banking"
	"banking-chatbot/engine/internal/channel/ussd"
	"banking-chatbot/engine/internal/channel/whatsapp"
	"banking-chatbot/engine/internal/dedup"
	"banking-chatbot/engine/internal/dispatch"
	"banking-chatbot/engine/internal/handlers"
	"banking-chatbot/engine/internal/session"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/jwt"
	"banking-chatbot/engine/pkg/logger"
	"banking-chatbot/engine/pkg/secrets"
)

// Container holds all the dependencies for the application
type Container struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Logger     *logger.Logger
	Config     *config.Config
	Secrets    secrets.Manager
	JWTService *jwt.Service

	Store        session.Store
	Deduplicator dedup.Deduplicator
	Gate         auth.Gate
	Banking      banking.Client
	Dispatcher   *dispatch.Dispatcher

	WhatsApp *whatsapp.Adapter
	USSD     *ussd.Adapter
}

// New wires the full dependency graph: persistence, the deduplication set,
// the auth gate, the banking client, both channel adapters and the
// dispatcher. Verifies the Redis connection before returning.
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	sm, err := newSecretsManager(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	ctx := context.Background()

	jwtSecret := sm.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret)
	jwtService := jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	store := session.NewGormStore(db)
	deduplicator := dedup.NewRedisDeduplicator(rdb, cfg.Dialogue.DedupRetention)
	gate := auth.NewGormGate(db, cfg.Dialogue.LoginValidity, cfg.Dialogue.OTPExpiry, cfg.Dialogue.OTPLength)

	bankingClient := banking.NewHTTPClient(
		cfg.ESB.BaseURL,
		sm.GetSecretWithDefault(ctx, secrets.KeyESBUsername, cfg.ESB.Username),
		sm.GetSecretWithDefault(ctx, secrets.KeyESBPassword, cfg.ESB.Password),
		cfg.ESB.Timeout,
		log,
	)

	provider := whatsapp.NewProviderClient(cfg.Provider.BaseURL, cfg.Provider.AccountID, sm, cfg.Channels.WhatsApp.DeliveryTimeout, log)
	whatsappAdapter := whatsapp.New(store, cfg.Channels.WhatsApp, provider, log)
	ussdAdapter := ussd.New(store, cfg.Channels.USSD, log)

	menus := handlers.Menus()
	registry := handlers.NewRegistry(handlers.Deps{
		Banking: bankingClient,
		Gate:    gate,
		Menus:   menus,
		Notify:  provider,
		Cfg:     cfg,
		Log:     log,
	})

	dispatcher, err := dispatch.New(registry, menus, gate, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	return &Container{
		DB:           db,
		Redis:        rdb,
		Logger:       log,
		Config:       cfg,
		Secrets:      sm,
		JWTService:   jwtService,
		Store:        store,
		Deduplicator: deduplicator,
		Gate:         gate,
		Banking:      bankingClient,
		Dispatcher:   dispatcher,
		WhatsApp:     whatsappAdapter,
		USSD:         ussdAdapter,
	}, nil
}

// newSecretsManager prefers Vault when configured and falls back to a static
// manager seeded from the environment.
func newSecretsManager(cfg *config.Config, log *logger.Logger) (secrets.Manager, error) {
	if os.Getenv("VAULT_ADDR") != "" {
		return secrets.NewVaultManager(log)
	}
	return secrets.NewStaticManager(map[string]string{
		secrets.KeyProviderToken: cfg.Provider.Token,
		secrets.KeyESBUsername:   cfg.ESB.Username,
		secrets.KeyESBPassword:   cfg.ESB.Password,
		secrets.KeyJWTSecret:     cfg.JWT.Secret,
	}), nil
}

// Close releases held connections.
func (c *Container) Close() error {
	return c.Redis.Close()
}
