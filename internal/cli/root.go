// Package cli implements registryctl, the operator command line for the
// registry: schema migrations, one-off expiry sweeps, dashboard counts and
// household bearer tokens.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"qochi/internal/platform/config"
	"qochi/internal/platform/logger"
	"qochi/internal/platform/postgres"
	"qochi/internal/registry/service"
	pgstore "qochi/internal/registry/store/postgres"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// BackendOpener connects to the record store. The returned func releases it.
type BackendOpener func(ctx context.Context, cfg config.Server) (service.Backend, func(), error)

// RootOptions holds global flags and the dependencies subcommands share.
type RootOptions struct {
	Format      string
	DatabaseURL string

	cfg         config.Server
	logger      *slog.Logger
	openBackend BackendOpener
}

type RootOption func(*RootOptions)

// WithBackendOpener swaps the postgres connection, e.g. for an in-memory
// store in tests.
func WithBackendOpener(open BackendOpener) RootOption {
	return func(o *RootOptions) { o.openBackend = open }
}

// NewRootCommand creates the registryctl root command.
func NewRootCommand(opts ...RootOption) *cobra.Command {
	rootOpts := &RootOptions{openBackend: openPostgres}
	for _, opt := range opts {
		opt(rootOpts)
	}

	cmd := &cobra.Command{
		Use:   "registryctl",
		Short: "Operate the qochi registry",
		Long:  "Operator tooling for the qochi civic registry: migrations, expiry sweeps, pending counts and tokens.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, rootOpts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", rootOpts.Format, ValidFormats)
			}
			rootOpts.cfg = config.FromEnv()
			if rootOpts.DatabaseURL != "" {
				rootOpts.cfg.Database.URL = rootOpts.DatabaseURL
			}
			rootOpts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), rootOpts.cfg.Log.Level, "text")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rootOpts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&rootOpts.DatabaseURL, "database-url", "", "postgres URL (default $QOCHI_DATABASE_URL)")

	cmd.AddCommand(NewMigrateCommand(rootOpts))
	cmd.AddCommand(NewSweepCommand(rootOpts))
	cmd.AddCommand(NewPendingCommand(rootOpts))
	cmd.AddCommand(NewTokenCommand(rootOpts))

	return cmd
}

func openPostgres(ctx context.Context, cfg config.Server) (service.Backend, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("a database URL is required (--database-url or QOCHI_DATABASE_URL)")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.New(db), func() { _ = db.Close() }, nil
}
