// Package auth supplies the bearer credential and the account email used to
// query the calendar.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore persists an OAuth token as JSON on disk
type TokenStore struct {
	mu       sync.Mutex
	fileName string
}

// NewTokenStore creates a store backed by fileName
func NewTokenStore(fileName string) *TokenStore {
	return &TokenStore{fileName: fileName}
}

// Save writes token, readable only by the current user
func (s *TokenStore) Save(token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.fileName, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Get returns the stored token, or nil when none was saved yet
func (s *TokenStore) Get() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.fileName)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	return &token, nil
}
