// Package cli implements couponctl, the operator command line for the referral coupon service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/referral-coupon-service/internal/codegen"
	"github.com/fairyhunter13/referral-coupon-service/internal/config"
	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/repository"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Migrator is the schema migration surface used by the migrate commands.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// AccessCodeCreator creates access codes on behalf of an operator.
type AccessCodeCreator interface {
	Create(ctx context.Context, req *model.CreateAccessCodeRequest, createdBy string) (*model.AccessCode, error)
}

// Deps opens the backing resources a command needs. Each opener returns a
// cleanup func that must be called once the command is done.
type Deps struct {
	LoadConfig      func() (*config.Config, error)
	OpenMigrator    func(cfg *config.Config) (Migrator, error)
	OpenAccessCodes func(ctx context.Context, cfg *config.Config) (AccessCodeCreator, func(), error)
}

// DefaultDeps wires the commands to PostgreSQL using the environment configuration.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		OpenMigrator: func(cfg *config.Config) (Migrator, error) {
			return database.NewMigrator(cfg.DB.MigrationURL())
		},
		OpenAccessCodes: func(ctx context.Context, cfg *config.Config) (AccessCodeCreator, func(), error) {
			pool, err := pgxpool.New(ctx, cfg.DB.DSN())
			if err != nil {
				return nil, nil, fmt.Errorf("connect to database: %w", err)
			}
			ledger := service.NewAccessCodeLedger(pool, repository.NewAccessCodeRepository(pool), codegen.New())
			return ledger, pool.Close, nil
		},
	}
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	deps   Deps
}

// NewRootCommand creates the couponctl root command backed by DefaultDeps.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithDeps(DefaultDeps())
}

// NewRootCommandWithDeps creates the root command with the given dependencies.
func NewRootCommandWithDeps(deps Deps) *cobra.Command {
	opts := &RootOptions{deps: deps}

	cmd := &cobra.Command{
		Use:   "couponctl",
		Short: "Operate the referral coupon service",
		Long:  "Operator tooling for the referral coupon service: schema migrations, access codes and admin credentials.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAccessCodeCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// write prints v as indented JSON, or text when the json format was not requested.
func (o *RootOptions) write(w io.Writer, v any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
