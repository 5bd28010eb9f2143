package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

// operator is recorded as the creator of access codes made from the command line.
const operator = "couponctl"

// NewAccessCodeCommand creates the access-code command.
func NewAccessCodeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-code",
		Short: "Manage beta access codes",
	}
	cmd.AddCommand(newAccessCodeCreateCommand(opts))
	return cmd
}

func newAccessCodeCreateCommand(opts *RootOptions) *cobra.Command {
	var maxUses, expiryDays int
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new access code",
		Long: `Create a new six character access code.

The code is usable by --max-uses distinct users and expires --expiry-days from now.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			creator, cleanup, err := opts.deps.OpenAccessCodes(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ac, err := creator.Create(cmd.Context(), &model.CreateAccessCodeRequest{
				Description: description,
				MaxUses:     &maxUses,
				ExpiryDays:  &expiryDays,
			}, operator)
			if err != nil {
				return err
			}

			text := fmt.Sprintf("%s (max uses %d, expires %s)", ac.Code, ac.MaxUses, ac.ExpiresAt.Format(time.RFC3339))
			return opts.write(cmd.OutOrStdout(), ac, text)
		},
	}

	cmd.Flags().IntVar(&maxUses, "max-uses", 0, "number of distinct users that may redeem the code")
	cmd.Flags().IntVar(&expiryDays, "expiry-days", 0, "days until the code expires")
	cmd.Flags().StringVar(&description, "description", "", "description shown to users")
	_ = cmd.MarkFlagRequired("max-uses")
	_ = cmd.MarkFlagRequired("expiry-days")

	return cmd
}
