package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/store"
)

func evidenceCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evidence [provider-id]",
		Short: "Dump the evidence ledger rows for one provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			providerID := args[0]

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("evidence: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if _, err := st.Provider(ctx, providerID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("evidence: provider not found: %s", providerID)
				}
				return fmt.Errorf("evidence: fetching provider: %w", err)
			}

			items, err := st.EvidenceFor(ctx, providerID)
			if err != nil {
				return fmt.Errorf("evidence: querying store: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(items); encErr != nil {
					return fmt.Errorf("evidence: encoding JSON: %w", encErr)
				}
				return nil
			}

			for i := range items {
				e := &items[i]
				fmt.Printf("[%d] %-8s %-28s (%s) %s\n",
					i+1, e.Severity, e.Label, e.Source, e.Timestamp.Format("2006-01-02"))
				fmt.Printf("    %s\n", truncate(e.Description, 120))
				if e.URL != nil {
					fmt.Printf("    URL: %s\n", *e.URL)
				}
			}

			if len(items) == 0 {
				fmt.Println("No evidence on file.")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print full evidence documents as JSON")
	return cmd
}
