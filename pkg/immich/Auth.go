package immich

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

var (
	ErrTokenNotSet     = errors.New("oauth token not set, authenticate first")
	ErrUnsupportedAuth = errors.New("unsupported auth type")
)

/*
AuthProvider yields the single header used to authenticate every
request to the Immich API.
*/
type AuthProvider interface {
	AuthHeader(ctx context.Context) (string, string, error)
}

type APIKeyAuth struct {
	apiKey string
}

func NewAPIKeyAuth(apiKey string) APIKeyAuth {
	return APIKeyAuth{
		apiKey: apiKey,
	}
}

func (a APIKeyAuth) AuthHeader(ctx context.Context) (string, string, error) {
	return "x-api-key", a.apiKey, nil
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
}

/*
OAuthProvider holds a bearer token obtained through an authorization
code exchange. The token lives in memory only and is never refreshed;
an expired token requires a new exchange.
*/
type OAuthProvider struct {
	config *oauth2.Config

	mu    sync.RWMutex
	token string
}

func NewOAuthProvider(config OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"all"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
		},
	}
}

func (p *OAuthProvider) AuthHeader(ctx context.Context) (string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == "" {
		return "", "", ErrTokenNotSet
	}

	return "Authorization", "Bearer " + p.token, nil
}

// AuthorizationURL returns the URL a user visits to grant access.
func (p *OAuthProvider) AuthorizationURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *OAuthProvider) ExchangeCode(ctx context.Context, code string) error {
	token, err := p.config.Exchange(ctx, code)

	if err != nil {
		return fmt.Errorf("oauth token exchange failed: %w", err)
	}

	p.SetToken(token.AccessToken)
	return nil
}

func (p *OAuthProvider) SetToken(accessToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = accessToken
}

func (p *OAuthProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.token
}
