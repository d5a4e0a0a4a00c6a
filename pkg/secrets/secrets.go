package secrets

import (
	"context"
	"errors"
)

// Manager provides access to secrets from various sources. The engine reads
// the messaging-provider token and ESB credentials through this interface so
// deployments can keep them in Vault rather than process environment.
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Well-known secret keys used across the engine.
const (
	KeyProviderToken = "provider-token"
	KeyESBUsername   = "esb-username"
	KeyESBPassword   = "esb-password"
	KeyJWTSecret     = "jwt-secret"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// StaticManager serves secrets from a fixed map. Used in tests and in
// deployments that inject everything through the environment.
type StaticManager struct {
	values map[string]string
}

// NewStaticManager creates a manager over a fixed key/value set.
func NewStaticManager(values map[string]string) *StaticManager {
	if values == nil {
		values = make(map[string]string)
	}
	return &StaticManager{values: values}
}

func (m *StaticManager) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (m *StaticManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if v, err := m.GetSecret(ctx, key); err == nil {
		return v
	}
	return defaultValue
}
