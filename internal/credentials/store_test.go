package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp-connector-service/internal/models"
)

func validDynamicsConfig() ProviderConfig {
	return ProviderConfig{
		Endpoint:     "https://contoso.operations.dynamics.com",
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Resource:     "https://contoso.operations.dynamics.com",
	}
}

func validOracleConfig() ProviderConfig {
	return ProviderConfig{
		Endpoint:     "https://fa-test.oraclecloud.com",
		InstanceID:   "fa-test",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	}
}

func TestNewStoreRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		provider models.ProviderType
		mutate   func(*ProviderConfig)
		field    string
	}{
		{"missing endpoint", models.ProviderDynamics, func(c *ProviderConfig) { c.Endpoint = "" }, "endpoint"},
		{"missing tenant", models.ProviderDynamics, func(c *ProviderConfig) { c.TenantID = "" }, "tenant_id"},
		{"missing resource", models.ProviderDynamics, func(c *ProviderConfig) { c.Resource = "" }, "resource"},
		{"missing client id", models.ProviderDynamics, func(c *ProviderConfig) { c.ClientID = "" }, "client_id"},
		{"missing secret", models.ProviderDynamics, func(c *ProviderConfig) { c.ClientSecret = "" }, "client_secret"},
		{"missing instance", models.ProviderOracle, func(c *ProviderConfig) { c.InstanceID = "" }, "instance_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDynamicsConfig()
			if tt.provider == models.ProviderOracle {
				cfg = validOracleConfig()
			}
			tt.mutate(&cfg)

			_, err := NewStore(tt.provider, cfg)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.provider, cfgErr.Provider)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestOracleDoesNotRequireTenantOrResource(t *testing.T) {
	cfg := validOracleConfig()
	store, err := NewStore(models.ProviderOracle, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderOracle, store.Provider())
}

func TestTokenLifecycle(t *testing.T) {
	store, err := NewStore(models.ProviderDynamics, validDynamicsConfig())
	require.NoError(t, err)

	_, ok := store.Token()
	assert.False(t, ok)
	assert.False(t, store.HasToken())

	store.SetToken(AuthToken{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)})
	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token.Value)

	store.ClearToken()
	_, ok = store.Token()
	assert.False(t, ok)
}

func TestTokenExpiryHonorsSafetyMargin(t *testing.T) {
	store, err := NewStore(models.ProviderDynamics, validDynamicsConfig())
	require.NoError(t, err)

	// Expires within the default five minute margin: treated as stale
	store.SetToken(AuthToken{Value: "tok-1", ExpiresAt: time.Now().Add(2 * time.Minute)})
	_, ok := store.Token()
	assert.False(t, ok)

	// With a tiny margin the same token is still usable
	store.SetSafetyMargin(time.Second)
	_, ok = store.Token()
	assert.True(t, ok)
}

func TestAuthTokenValidAt(t *testing.T) {
	now := time.Now()
	token := AuthToken{Value: "tok", ExpiresAt: now.Add(10 * time.Minute)}

	assert.True(t, token.ValidAt(now, 5*time.Minute))
	assert.False(t, token.ValidAt(now, 15*time.Minute))
	assert.False(t, AuthToken{}.ValidAt(now, 0))
}
