package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command and its up, down and version subcommands.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(opts, cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				return printVersion(opts, cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, func(m Migrator) error {
				return printVersion(opts, cmd, m)
			})
		},
	})

	return cmd
}

func withMigrator(opts *RootOptions, fn func(Migrator) error) error {
	cfg, err := opts.deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	m, err := opts.deps.OpenMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(m)
}

func printVersion(opts *RootOptions, cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	text := fmt.Sprintf("schema version %d", version)
	if dirty {
		text += " (dirty)"
	}
	return opts.write(cmd.OutOrStdout(), map[string]any{"version": version, "dirty": dirty}, text)
}
