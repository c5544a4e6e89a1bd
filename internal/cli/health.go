package cli

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run one health sweep and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().HealthSweep(cmd.Context())
	},
}
