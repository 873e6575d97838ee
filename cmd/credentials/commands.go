package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"learnapp/internal/infra"
	"learnapp/internal/infra/credentials"
)

// keyStore is the part of credentials.Store the commands use.
type keyStore interface {
	Set(ctx context.Context, provider, key string) error
	Delete(ctx context.Context, provider string) error
	List(ctx context.Context) ([]credentials.Entry, error)
}

type storeOpener func(ctx context.Context) (keyStore, func(), error)

func openStore(ctx context.Context) (keyStore, func(), error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "credentials").Logger()
	return credentials.NewStore(infra.NewSQLRunner(pool, logger)), pool.Close, nil
}

func newRootCommand(open storeOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "credentials",
		Short:         "Manage provider API keys stored in the database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSetCommand(open), newListCommand(open), newDeleteCommand(open))
	return root
}

func withStore(cmd *cobra.Command, open storeOpener, fn func(ctx context.Context, store keyStore) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	store, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, store)
}

func normalizeProvider(raw string) (string, error) {
	provider := strings.ToLower(strings.TrimSpace(raw))
	if !credentials.Supported(provider) {
		return "", fmt.Errorf("unsupported provider %q (expected one of %s)", raw, strings.Join(credentials.Providers, ", "))
	}
	return provider, nil
}

func envKeyFor(provider string) string {
	switch provider {
	case credentials.ProviderGamma:
		return "GAMMA_API_KEY"
	case credentials.ProviderElevenLabs:
		return "ELEVENLABS_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

func newSetCommand(open storeOpener) *cobra.Command {
	var providerFlag, keyFlag string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := normalizeProvider(providerFlag)
			if err != nil {
				return err
			}
			key := strings.TrimSpace(keyFlag)
			if key == "" {
				key = strings.TrimSpace(os.Getenv(envKeyFor(provider)))
			}
			if key == "" {
				return fmt.Errorf("%s API key is required via --key or %s", provider, envKeyFor(provider))
			}
			return withStore(cmd, open, func(ctx context.Context, store keyStore) error {
				if err := store.Set(ctx, provider, key); err != nil {
					return fmt.Errorf("store %s api key: %w", provider, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored\n", provider)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&providerFlag, "provider", credentials.ProviderGemini, "Provider name ("+strings.Join(credentials.Providers, ", ")+")")
	cmd.Flags().StringVar(&keyFlag, "key", "", "API key (falls back to the provider's environment variable)")
	return cmd
}

func newListCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers with a stored key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, open, func(ctx context.Context, store keyStore) error {
				entries, err := store.List(ctx)
				if err != nil {
					return fmt.Errorf("list keys: %w", err)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No provider keys stored.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tUPDATED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\n", e.Provider, e.UpdatedAt.UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newDeleteCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove the stored key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := normalizeProvider(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, open, func(ctx context.Context, store keyStore) error {
				if err := store.Delete(ctx, provider); err != nil {
					return fmt.Errorf("delete %s api key: %w", provider, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key removed\n", provider)
				return nil
			})
		},
	}
}
