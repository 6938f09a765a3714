package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func purgeCmd() *cobra.Command {
	var hard bool

	cmd := &cobra.Command{
		Use:   "purge [run-id]",
		Short: "Delete a run's providers, evidence, and metadata",
		Long: `Removes one run from the store. The default is a soft delete: rows are
flagged and drop out of queries but stay recoverable. --hard removes the
rows permanently.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			runID := args[0]

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("purge: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			counts, err := st.DeleteRun(ctx, runID, hard)
			if err != nil {
				return fmt.Errorf("purge: deleting run: %w", err)
			}

			mode := "Soft-deleted"
			if hard {
				mode = "Deleted"
			}
			fmt.Printf("%s run %s: %d run record(s), %d provider(s), %d evidence item(s)\n",
				mode, runID, counts.Runs, counts.Providers, counts.Evidence)
			return nil
		},
	}

	cmd.Flags().BoolVar(&hard, "hard", false, "permanently remove rows instead of flagging them")
	return cmd
}
