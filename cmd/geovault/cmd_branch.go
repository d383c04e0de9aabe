package main

import (
	"fmt"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var del bool

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if del {
					return fmt.Errorf("branch name required with -d")
				}
				current, _ := r.CurrentBranch()
				names, err := r.ListBranches()
				if err != nil {
					return err
				}
				for _, name := range names {
					marker := "  "
					if name == current {
						marker = "* "
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, name)
				}
				return nil
			}

			if del {
				if err := r.DeleteBranch(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted branch %s\n", args[0])
				return nil
			}
			tip, err := r.ResolveRef(repo.HeadRef)
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}
			if err := r.CreateBranch(args[0], tip); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the named branch")

	return cmd
}
