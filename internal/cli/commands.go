package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	jwttoken "qochi/internal/jwt_token"
	"qochi/internal/platform/config"
	"qochi/internal/platform/postgres"
	"qochi/internal/registry/projection"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
)

// NewMigrateCommand applies pending schema migrations.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.cfg.Database.URL == "" {
				return WrapExitError(ExitCommandError, "migrate needs a database", fmt.Errorf("no database URL"))
			}
			db, err := postgres.Open(cmd.Context(), rootOpts.cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "connect", err)
			}
			defer db.Close()
			if err := postgres.Migrate(cmd.Context(), db, rootOpts.logger); err != nil {
				return WrapExitError(ExitFailure, "migrate", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}

// NewSweepCommand runs one expiry sweep with the configured policy.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var policyFile string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire approved requests whose validity window has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policyFile == "" {
				policyFile = rootOpts.cfg.ExpiryPolicyFile
			}
			policy, err := config.LoadExpiryPolicy(policyFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "load expiry policy", err)
			}
			backend, release, err := rootOpts.openBackend(cmd.Context(), rootOpts.cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "open store", err)
			}
			defer release()

			svc := service.New(backend, backend,
				service.WithLogger(rootOpts.logger),
				service.WithExpiryPolicy(policy),
				service.WithRegistryID(rootOpts.cfg.RegistryID),
			)
			n, sweepErr := svc.SweepExpired(cmd.Context())
			result := map[string]any{"expired": n, "incomplete": sweepErr != nil}
			if err := output(cmd.OutOrStdout(), rootOpts.Format, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "expired %d request(s)\n", n)
				return err
			}); err != nil {
				return err
			}
			if sweepErr != nil {
				return WrapExitError(ExitFailure, "sweep incomplete", sweepErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy", "", "expiry policy YAML (default $QOCHI_EXPIRY_POLICY_FILE)")
	return cmd
}

// NewPendingCommand prints the admin dashboard counts.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show pending requests, admissions and registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, release, err := rootOpts.openBackend(cmd.Context(), rootOpts.cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "open store", err)
			}
			defer release()

			counts, err := projection.New(backend).PendingCounts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "pending counts", err)
			}
			return output(cmd.OutOrStdout(), rootOpts.Format, counts, func(w io.Writer) error {
				return writePendingText(w, counts)
			})
		},
	}
}

func writePendingText(w io.Writer, counts *projection.PendingCounts) error {
	if _, err := fmt.Fprintf(w, "requests:      %d\nadmissions:    %d\nregistrations: %d\n",
		counts.Total, counts.Admissions, counts.Registrations); err != nil {
		return err
	}
	for _, kind := range slices.Sorted(maps.Keys(counts.ByKind)) {
		if _, err := fmt.Fprintf(w, "  %-9s %d\n", kind, counts.ByKind[kind]); err != nil {
			return err
		}
	}
	return nil
}

// NewTokenCommand issues a household bearer token.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <household-id>",
		Short: "Issue a bearer token for a household",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			householdID, err := id.ParseHouseholdID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid household id", err)
			}
			svc := jwttoken.NewJWTService(rootOpts.cfg.JWTSigningKey, "qochi", rootOpts.cfg.RegistryID)
			token, err := svc.GenerateHouseholdToken(householdID, ttl)
			if err != nil {
				return WrapExitError(ExitFailure, "sign token", err)
			}
			result := map[string]any{"household_id": householdID, "token": token, "expires_in": ttl.String()}
			return output(cmd.OutOrStdout(), rootOpts.Format, result, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, token)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
