package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFAQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Maintain the FAQ vector index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index from the FAQ table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			faqs, err := a.db.ListFAQs(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.faq.Reindex(cmd.Context(), faqs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d FAQ entries (%d lines)\n", len(faqs), a.faq.Count())
			return nil
		},
	})
	return cmd
}
