package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger-whale-alerts/internal/app"
)

var (
	dispatchAlertID int64
	dispatchTest    bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver one stored whale alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dispatchAlertID <= 0 {
			return fmt.Errorf("--alert-id must be provided")
		}

		opts := app.DispatchOptions{
			AlertID:  dispatchAlertID,
			TestMode: dispatchTest,
		}
		return getApp().Dispatch(cmd.Context(), opts)
	},
}

func init() {
	dispatchCmd.Flags().Int64Var(&dispatchAlertID, "alert-id", 0, "Alert id to dispatch")
	dispatchCmd.Flags().BoolVar(&dispatchTest, "test", false, "Send to the system channel without marking the alert sent")
}
