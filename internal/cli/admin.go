package cli

import (
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/referral-coupon-service/internal/middleware"
)

// NewAdminCommand creates the admin command.
func NewAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrative credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to configure as ADMIN_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAdminKey(args[0])
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), map[string]string{"hash": hash}, hash)
		},
	})

	return cmd
}
