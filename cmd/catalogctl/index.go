package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(a *app) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the catalogue index",
	}

	indexCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the catalogue index with its settings and mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.service.CreateIndex(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created index %s\n", a.service.Index())
			return nil
		},
	})
	return indexCmd
}
