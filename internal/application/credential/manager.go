package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/bluecode/internal/application"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	lockKey      = "bluecode:credential"
	callbackPath = "/api/bluecode?type=bcoauth2"
)

// TokenClient is the part of the provider client the manager needs.
type TokenClient interface {
	Token(ctx context.Context, sandbox bool, r bluecode.TokenRequest) (*bluecode.TokenResult, error)
	AuthorizeURL(sandbox bool, clientID, redirectURI, state string) string
}

// Manager owns the merchant's OAuth2 credential. All provider calls obtain
// their bearer token through GetValidAccessToken.
type Manager struct {
	settings        settings.Store
	credentials     settings.CredentialRepository
	client          TokenClient
	locker          application.Locker
	states          application.StateStore
	stateTTL        time.Duration
	exchangeTimeout time.Duration // bounds a shared refresh detached from its callers
	redirectURI     string
	group           singleflight.Group
	now             func() time.Time
	metrics         *observability.Metrics
	logger          zerolog.Logger
}

type Option func(*Manager)

// WithLocker serialises exchanges across processes sharing the credential.
func WithLocker(l application.Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithExchangeTimeout bounds a refresh shared by concurrent callers.
func WithExchangeTimeout(d time.Duration) Option {
	return func(m *Manager) { m.exchangeTimeout = d }
}

// WithStateTTL sets how long an authorization state stays valid.
func WithStateTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.stateTTL = ttl }
}

func NewManager(
	settingsStore settings.Store,
	credentials settings.CredentialRepository,
	client TokenClient,
	states application.StateStore,
	publicBaseURL string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *Manager {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	m := &Manager{
		settings:        settingsStore,
		credentials:     credentials,
		client:          client,
		states:          states,
		stateTTL:        10 * time.Minute,
		exchangeTimeout: 30 * time.Second,
		redirectURI:     strings.TrimRight(publicBaseURL, "/") + callbackPath,
		now:             time.Now,
		metrics:         metrics,
		logger:          observability.Component(logger, "credential-manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RedirectURI is the OAuth2 callback registered with the provider.
func (m *Manager) RedirectURI() string {
	return m.redirectURI
}

// GetValidAccessToken returns a bearer token, exchanging a code or the stored
// refresh token when the stored one is missing, about to expire, or
// forceRefresh is set.
func (m *Manager) GetValidAccessToken(ctx context.Context, forceRefresh bool, authorizationCode string) (string, error) {
	cred, err := m.credentials.GetCredential(ctx)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if !forceRefresh && authorizationCode == "" && cred.UsableAt(m.now()) {
		return cred.AccessToken, nil
	}
	if authorizationCode == "" && (cred == nil || cred.RefreshToken == "") {
		return "", domainErrors.AuthFailure(domainErrors.ErrNoCredential, nil)
	}

	// Code exchanges are single-use and never shared between callers.
	if authorizationCode != "" {
		return m.exchange(ctx, authorizationCode, false)
	}

	// The shared refresh must outlive the caller that started it, or one
	// cancelled request would fail every caller waiting on it.
	ch := m.group.DoChan(lockKey, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.exchangeTimeout)
		defer cancel()
		return m.exchange(shared, "", !forceRefresh)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// exchange runs one token grant under the distributed lock. With reuse set, a
// credential refreshed by another instance while we waited is returned as is.
func (m *Manager) exchange(ctx context.Context, code string, reuse bool) (string, error) {
	if m.locker != nil {
		release, err := m.locker.Acquire(ctx, lockKey)
		if err != nil {
			m.logger.Warn().Err(err).Msg("credential lock unavailable, exchanging without it")
		} else {
			defer release(context.WithoutCancel(ctx))
		}
	}

	cred, err := m.credentials.GetCredential(ctx)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if reuse && cred.UsableAt(m.now()) {
		return cred.AccessToken, nil
	}

	cfg, err := m.settings.Merchant(ctx)
	if err != nil {
		return "", fmt.Errorf("load merchant settings: %w", err)
	}

	req := bluecode.TokenRequest{
		Code:         code,
		RedirectURI:  m.redirectURI,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
	if code == "" {
		if cred == nil || cred.RefreshToken == "" {
			return "", domainErrors.AuthFailure(domainErrors.ErrNoCredential, nil)
		}
		req.RefreshToken = cred.RefreshToken
	}

	res, err := m.client.Token(ctx, cfg.Sandbox, req)
	if err != nil {
		m.metrics.TokenExchanges.WithLabelValues(req.GrantType(), "transport_error").Inc()
		m.logger.Error().Err(err).Str("grant_type", req.GrantType()).Msg("token exchange failed")
		return "", domainErrors.AuthFailure(domainErrors.ErrExchangeFailed, err)
	}
	if !res.OK() {
		m.metrics.TokenExchanges.WithLabelValues(req.GrantType(), "rejected").Inc()
		m.logger.Error().Int("http_code", res.HTTPCode).Str("grant_type", req.GrantType()).Msg("token exchange rejected")
		return "", domainErrors.AuthFailure(domainErrors.ErrExchangeFailed, fmt.Errorf("token endpoint returned %d", res.HTTPCode))
	}

	fresh := &settings.Credential{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(res.ExpiresIn) * time.Second),
	}
	if fresh.RefreshToken == "" && cred != nil {
		fresh.RefreshToken = cred.RefreshToken
	}
	if err := m.credentials.SaveCredential(ctx, fresh); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}

	m.metrics.TokenExchanges.WithLabelValues(req.GrantType(), "success").Inc()
	m.logger.Info().Str("grant_type", req.GrantType()).Time("expires_at", fresh.ExpiresAt).Msg("credential refreshed")
	return fresh.AccessToken, nil
}

// AuthorizeURL mints a single-use state and returns the merchant portal URL
// that starts the authorization code flow.
func (m *Manager) AuthorizeURL(ctx context.Context) (string, error) {
	cfg, err := m.settings.Merchant(ctx)
	if err != nil {
		return "", fmt.Errorf("load merchant settings: %w", err)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return "", domainErrors.ConfigInvalid("client_id")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return "", domainErrors.ConfigInvalid("client_secret")
	}

	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := m.states.Save(ctx, state, m.stateTTL); err != nil {
		return "", fmt.Errorf("save oauth2 state: %w", err)
	}
	return m.client.AuthorizeURL(cfg.Sandbox, cfg.ClientID, m.redirectURI, state), nil
}

// CompleteAuthorization consumes state and exchanges code for a credential.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, state string) error {
	if code == "" {
		return domainErrors.AuthFailure(domainErrors.ErrNoCredential, nil)
	}
	ok, err := m.states.Consume(ctx, state)
	if err != nil {
		return fmt.Errorf("consume oauth2 state: %w", err)
	}
	if !ok {
		return domainErrors.ErrInvalidOAuthState
	}
	_, err = m.GetValidAccessToken(ctx, true, code)
	return err
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth2 state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
