package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarReadonlyScope is the only scope the daemon asks for
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

var (
	ErrNoToken = errors.New("no stored token, run with -login")
	ErrNoEmail = errors.New("no account email configured")
)

// OAuthConfig builds the Google OAuth client configuration
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{CalendarReadonlyScope},
	}
}

// Provider hands out a fresh access token for the configured account and
// writes refreshed tokens back to the store.
type Provider struct {
	mu     sync.Mutex
	config *oauth2.Config
	store  *TokenStore
	email  string
	source oauth2.TokenSource
	last   *oauth2.Token
}

// NewProvider creates a provider for email
func NewProvider(config *oauth2.Config, store *TokenStore, email string) *Provider {
	return &Provider{
		config: config,
		store:  store,
		email:  strings.ToLower(strings.TrimSpace(email)),
	}
}

// Email returns the lower-cased account email
func (p *Provider) Email(context.Context) (string, error) {
	if p.email == "" {
		return "", ErrNoEmail
	}
	return p.email, nil
}

// Token returns a valid access token, refreshing it when expired
func (p *Provider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		stored, err := p.store.Get()
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, ErrNoToken
		}
		p.last = stored
		p.source = p.config.TokenSource(context.WithoutCancel(ctx), stored)
	}

	token, err := p.source.Token()
	if err != nil {
		p.source = nil
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if p.last == nil || token.AccessToken != p.last.AccessToken {
		if err := p.store.Save(token); err != nil {
			return nil, err
		}
		p.last = token
	}
	return token, nil
}
