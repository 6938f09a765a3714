package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent scan runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("runs: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			records, err := st.Runs(ctx, limit)
			if err != nil {
				return fmt.Errorf("runs: querying store: %w", err)
			}

			for i := range records {
				r := &records[i]
				marker := ""
				if r.Deleted {
					marker = " (deleted)"
				}
				fmt.Printf("[%d] %s%s\n", i+1, r.Meta.ID, marker)
				fmt.Printf("    Started: %s | Region: %s | Providers: %d | Evidence: %d\n",
					r.Meta.StartedAt.Format("2006-01-02 15:04"), r.Meta.Region,
					r.Meta.ProviderCount, r.Meta.EvidenceCount)
				if r.Meta.Tag != "" || r.Meta.Scenario != "" {
					fmt.Printf("    Tag: %s | Scenario: %s\n", r.Meta.Tag, r.Meta.Scenario)
				}
			}

			if len(records) == 0 {
				fmt.Println("No runs recorded.")
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	return cmd
}
