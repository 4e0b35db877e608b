package credentials

import (
	"fmt"
	"sync"
	"time"

	"erp-connector-service/internal/models"
)

// DefaultSafetyMargin is subtracted from a token's expiry when deciding
// whether it is still usable, so a token is refreshed slightly before it
// actually lapses.
const DefaultSafetyMargin = 5 * time.Minute

// ConfigurationError indicates a missing or invalid provider setting.
// It is fatal for that provider until the configuration is corrected and
// is never retried automatically.
type ConfigurationError struct {
	Provider models.ProviderType
	Field    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for provider %s: missing %s", e.Provider, e.Field)
}

// ProviderConfig holds the immutable per-provider settings. Loaded once
// at startup and validated before any network call.
type ProviderConfig struct {
	// Endpoint is the provider API base URL (Dynamics environment URL or
	// Oracle instance URL)
	Endpoint string `json:"endpoint"`

	// TenantID is the Azure AD tenant (Dynamics only)
	TenantID string `json:"tenantId,omitempty"`

	// InstanceID identifies the Oracle Cloud instance (Oracle only)
	InstanceID string `json:"instanceId,omitempty"`

	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`

	// Resource is the OAuth2 resource/scope requested during the
	// client-credentials grant
	Resource string `json:"resource,omitempty"`
}

// Validate checks that every field the given provider requires is set
func (c ProviderConfig) Validate(provider models.ProviderType) error {
	required := map[string]string{
		"endpoint":      c.Endpoint,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	}
	switch provider {
	case models.ProviderDynamics:
		required["tenant_id"] = c.TenantID
		required["resource"] = c.Resource
	case models.ProviderOracle:
		required["instance_id"] = c.InstanceID
	}

	// Check in a stable order so the reported field is deterministic
	for _, field := range []string{"endpoint", "tenant_id", "instance_id", "client_id", "client_secret", "resource"} {
		if v, ok := required[field]; ok && v == "" {
			return &ConfigurationError{Provider: provider, Field: field}
		}
	}
	return nil
}

// AuthToken is an access token with its expiry, owned exclusively by one
// Store for one provider
type AuthToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ValidAt reports whether the token is usable at the given instant,
// accounting for the safety margin
func (t AuthToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// Store owns the configuration and the cached access token for one
// provider. One Store per provider, injected into the adapter and
// gateway, so tests can instantiate independent isolated stores.
//
// The token is the one piece of mutable shared state in the connector;
// readers and writers are serialized, and no lock is ever held across a
// network call. Concurrent callers that both observe an expired token may
// both trigger re-authentication; that costs a redundant round trip but
// is never a correctness violation.
type Store struct {
	provider     models.ProviderType
	config       ProviderConfig
	safetyMargin time.Duration

	mu    sync.RWMutex
	token *AuthToken
}

// NewStore validates the configuration and creates a credential store.
// A blank required field fails here, before any network call.
func NewStore(provider models.ProviderType, config ProviderConfig) (*Store, error) {
	if !models.IsValidProviderType(provider) {
		return nil, fmt.Errorf("unknown provider type: %s", provider)
	}
	if err := config.Validate(provider); err != nil {
		return nil, err
	}
	return &Store{
		provider:     provider,
		config:       config,
		safetyMargin: DefaultSafetyMargin,
	}, nil
}

// SetSafetyMargin overrides the expiry safety margin (tests use this to
// exercise the refresh window)
func (s *Store) SetSafetyMargin(margin time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safetyMargin = margin
}

// Provider returns the provider this store belongs to
func (s *Store) Provider() models.ProviderType {
	return s.provider
}

// Config returns the immutable provider configuration
func (s *Store) Config() ProviderConfig {
	return s.config
}

// Token returns the cached token when it is still valid within the
// safety margin. ok=false means the caller (the adapter) must
// re-authenticate and call SetToken.
func (s *Store) Token() (AuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || !s.token.ValidAt(time.Now(), s.safetyMargin) {
		return AuthToken{}, false
	}
	return *s.token, true
}

// HasToken reports whether any token is cached, valid or not
func (s *Store) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil
}

// SetToken caches a freshly obtained token
func (s *Store) SetToken(token AuthToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &token
}

// ClearToken drops the cached token, forcing the next caller to
// re-authenticate
func (s *Store) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}
