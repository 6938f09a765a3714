package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/store"
)

func labelCmd() *cobra.Command {
	var (
		label string
		notes string
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "label [provider-id]",
		Short: "Set or clear the analyst label and notes on a provider",
		Long: `Sets the manual review label on a stored provider. Label and notes are
written together; omitting one clears it. --clear removes both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			providerID := args[0]

			if !clear && label == "" && notes == "" {
				return fmt.Errorf("label: provide --label and/or --notes, or --clear")
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("label: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			var labelPtr, notesPtr *string
			if !clear {
				if label != "" {
					labelPtr = &label
				}
				if notes != "" {
					notesPtr = &notes
				}
			}

			if err := st.UpdateManualLabel(ctx, providerID, labelPtr, notesPtr); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("label: provider not found: %s", providerID)
				}
				return fmt.Errorf("label: updating provider: %w", err)
			}

			if clear {
				fmt.Printf("Cleared label on %s\n", providerID)
			} else {
				fmt.Printf("Labeled %s\n", providerID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "manual review label (e.g. confirmed_fraud, false_positive)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form analyst notes")
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the label and notes")
	return cmd
}
