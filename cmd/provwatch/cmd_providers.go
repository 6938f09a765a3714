package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/store"
)

func providersCmd() *cobra.Command {
	var (
		tiersRaw     string
		statusesRaw  string
		minSuspicion float64
		tag          string
		runID        string
		limit        int
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Query stored providers by risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			tiers, err := parseTiers(tiersRaw)
			if err != nil {
				return fmt.Errorf("providers: %w", err)
			}
			statuses, err := parseStatuses(statusesRaw)
			if err != nil {
				return fmt.Errorf("providers: %w", err)
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("providers: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			filter := store.RiskFilter{Tiers: tiers, Statuses: statuses, Limit: limit}
			if minSuspicion >= 0 {
				filter.MinSuspicion = &minSuspicion
			}
			if tag != "" {
				filter.Tag = &tag
			}
			if runID != "" {
				filter.RunID = &runID
			}

			providers, err := st.ProvidersByRisk(ctx, filter)
			if err != nil {
				return fmt.Errorf("providers: querying store: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(providers); encErr != nil {
					return fmt.Errorf("providers: encoding JSON: %w", encErr)
				}
				return nil
			}

			for i := range providers {
				p := &providers[i]
				fmt.Printf("[%d] %5.2f %-9s %-22s %s\n",
					i+1, p.Signals.SuspicionScore, p.RiskTier, p.Status, p.NormalizedName)
				fmt.Printf("    ID: %s | City: %s | Evidence: %d\n",
					p.ID, strOrNA(p.City), len(p.Investigation.EvidenceIDs))
			}

			if len(providers) == 0 {
				fmt.Println("No providers found.")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tiersRaw, "tiers", "", "filter by comma-separated risk tiers")
	cmd.Flags().StringVar(&statusesRaw, "statuses", "", "filter by comma-separated statuses")
	cmd.Flags().Float64Var(&minSuspicion, "min-suspicion", -1, "minimum suspicion score")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by run tag")
	cmd.Flags().StringVar(&runID, "run-id", "", "filter by run id")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (0 = store default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full provider documents as JSON")
	return cmd
}
