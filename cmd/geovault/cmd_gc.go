package main

import (
	"fmt"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Prune objects unreachable from any ref",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.GC()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects reachable, %d pruned\n", summary.Reachable, summary.Pruned)
			return nil
		},
	}

	return cmd
}
