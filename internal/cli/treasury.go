package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "List protocol fees accrued in the treasury book",
	Long:  `List the protocol fees recorded per fund and token. Requires treasury.kind = "book"; the daemon must not be running.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.book == nil {
			return fmt.Errorf("treasury kind %q keeps no holdings", cfg.Treasury.Kind)
		}
		return printJSON(cmd.OutOrStdout(), a.book.Holdings())
	},
}

func init() {
	rootCmd.AddCommand(treasuryCmd)
}
