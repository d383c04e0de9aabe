package main

import (
	"fmt"
	"sort"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged and working-set changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			branch, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			if branch != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "On branch %s\n", branch)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "HEAD detached")
			}

			conflicts, err := r.ReadConflicts()
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nUnmerged paths:")
				for _, c := range conflicts {
					fmt.Fprintf(cmd.OutOrStdout(), "\tboth modified: %s\n", c.Path)
				}
			}

			printChanges := func(title string, changes map[string]*repo.StagedChange) {
				if len(changes) == 0 {
					return
				}
				paths := make([]string, 0, len(changes))
				for p := range changes {
					paths = append(paths, p)
				}
				sort.Strings(paths)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", title)
				for _, p := range paths {
					verb := "modified"
					if changes[p].Delete {
						verb = "deleted"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "\t%s: %s\n", verb, p)
				}
			}

			staged, err := r.StagedChanges()
			if err != nil {
				return err
			}
			printChanges("Changes to be committed", staged)

			working, err := r.WorkingChanges()
			if err != nil {
				return err
			}
			printChanges("Changes not staged for commit", working)

			if len(staged) == 0 && len(working) == 0 && len(conflicts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to commit, working set clean")
			}
			return nil
		},
	}
}
