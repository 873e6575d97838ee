package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"learnapp/internal/infra/credentials"
)

type memStore struct {
	keys    map[string]string
	updated time.Time
}

func (m *memStore) Set(_ context.Context, provider, key string) error {
	m.keys[provider] = key
	return nil
}

func (m *memStore) Delete(_ context.Context, provider string) error {
	delete(m.keys, provider)
	return nil
}

func (m *memStore) List(context.Context) ([]credentials.Entry, error) {
	var out []credentials.Entry
	for _, p := range credentials.Providers {
		if _, ok := m.keys[p]; ok {
			out = append(out, credentials.Entry{Provider: p, UpdatedAt: m.updated})
		}
	}
	return out, nil
}

func execute(t *testing.T, store *memStore, args ...string) (string, error) {
	t.Helper()
	opener := func(context.Context) (keyStore, func(), error) { return store, nil, nil }
	cmd := newRootCommand(opener)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCredentialsCommands(t *testing.T) {
	store := &memStore{keys: map[string]string{}, updated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	out, err := execute(t, store, "set", "--provider", "Gamma", "--key", " sk-gamma ")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.keys["gamma"] != "sk-gamma" {
		t.Fatalf("stored keys = %v", store.keys)
	}
	if !strings.Contains(out, "gamma API key stored") {
		t.Fatalf("set output = %q", out)
	}

	out, err = execute(t, store, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "gamma") || !strings.Contains(out, "2025-06-01T12:00:00Z") {
		t.Fatalf("list output = %q", out)
	}

	if _, err := execute(t, store, "delete", "gamma"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.keys["gamma"]; ok {
		t.Fatalf("gamma key still present")
	}

	out, err = execute(t, store, "list")
	if err != nil || !strings.Contains(out, "No provider keys stored.") {
		t.Fatalf("empty list = %q, %v", out, err)
	}
}

func TestCredentialsSetRejects(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	store := &memStore{keys: map[string]string{}}

	if _, err := execute(t, store, "set", "--provider", "openai", "--key", "x"); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
	if _, err := execute(t, store, "set", "--provider", "elevenlabs"); err == nil {
		t.Fatalf("expected missing key error")
	}
	if len(store.keys) != 0 {
		t.Fatalf("nothing should be stored: %v", store.keys)
	}
}

func TestCredentialsSetFallsBackToEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "xi-from-env")
	store := &memStore{keys: map[string]string{}}

	if _, err := execute(t, store, "set", "--provider", "elevenlabs"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.keys["elevenlabs"] != "xi-from-env" {
		t.Fatalf("stored keys = %v", store.keys)
	}
}
