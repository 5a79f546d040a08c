package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "Write a snapshot of the ledger",
	Long:  `Write a compressed snapshot of the whole ledger state. The daemon must not be running.`,
	Args:  cobra.ExactArgs(1),
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

		st := a.ledger.Snapshot()
		if args[0] == "-" {
			return snapshot.Write(cmd.OutOrStdout(), st)
		}
		if err := snapshot.Save(args[0], st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported sequence %d to %s\n", st.Sequence, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace the ledger with a snapshot",
	Long:  `Replace the whole ledger state with a snapshot written by export. The daemon must not be running.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		var st ledger.State
		if args[0] == "-" {
			st, err = snapshot.Read(cmd.InOrStdin())
		} else {
			st, err = snapshot.Load(args[0])
		}
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}

		a, err := openApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ledger.Restore(cmd.Context(), st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported sequence %d\n", st.Sequence)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
