package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"learnapp/internal/infra"
	"learnapp/internal/sqlinline"
)

const (
	ProviderGemini     = "gemini"
	ProviderGamma      = "gamma"
	ProviderElevenLabs = "elevenlabs"
)

// Providers lists every provider whose key can be stored.
var Providers = []string{ProviderGemini, ProviderGamma, ProviderElevenLabs}

// Store reads and writes provider API keys kept in integration_tokens.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Entry describes a stored provider key without exposing the token.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

// Supported reports whether provider is a known key name.
func Supported(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the value from the environment and falls back to the
// stored key.
func (s *Store) Resolve(ctx context.Context, provider, fromEnv string) (string, error) {
	if v := strings.TrimSpace(fromEnv); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// Set upserts the key for provider.
func (s *Store) Set(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !Supported(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "cli"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw)
	return err
}

// Delete removes the stored key for provider.
func (s *Store) Delete(ctx context.Context, provider string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

// List returns the providers that have a stored key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
