package main

import (
	"fmt"
	"time"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			head, err := r.ResolveRef(repo.HeadRef)
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}

			entries, err := r.Log(head, limit)
			if err != nil {
				return err
			}

			for _, e := range entries {
				if oneline {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", shortHash(string(e.Hash)), e.Commit.Message)
					continue
				}
				when := time.UnixMilli(e.Commit.Committer.Timestamp).
					In(time.FixedZone("", e.Commit.Committer.TimezoneOffset*60))
				fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", e.Hash)
				fmt.Fprintf(cmd.OutOrStdout(), "Author: %s <%s>\n", e.Commit.Author.Name, e.Commit.Author.Email)
				fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n", when.Format(time.RFC1123Z))
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", e.Commit.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum commits to show (0 = all)")

	return cmd
}
