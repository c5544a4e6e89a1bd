package cli

import (
	"github.com/spf13/cobra"

	"ledger-whale-alerts/internal/app"
)

var pollWallet string

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll watched wallets once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PollOptions{
			Wallet: pollWallet,
		}
		return getApp().Poll(cmd.Context(), opts)
	},
}

func init() {
	pollCmd.Flags().StringVar(&pollWallet, "wallet", "", "Poll a single wallet address (default: all active wallets)")
}
