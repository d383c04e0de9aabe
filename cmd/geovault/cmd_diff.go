package main

import (
	"errors"
	"fmt"

	"github.com/geovault/geovault/pkg/diff"
	"github.com/geovault/geovault/pkg/object"
	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show feature changes between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			from, err := resolveTree(r, args[0])
			if err != nil {
				return err
			}
			to, err := resolveTree(r, args[1])
			if err != nil {
				return err
			}

			changes, err := diff.Diff(r.Store, from, to)
			if err != nil {
				return err
			}

			for _, c := range changes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Type, c.Path)
			}
			return nil
		},
	}

	return cmd
}

// resolveTree turns a ref name or commit hash into the root tree it points at.
func resolveTree(r *repo.Repo, spec string) (object.Hash, error) {
	h, err := r.ResolveRef(spec)
	if err != nil {
		if !errors.Is(err, repo.ErrRefNotFound) {
			return object.NullHash, err
		}
		h = object.Hash(spec)
	}
	c, err := object.GetCommit(r.Store, h)
	if err != nil {
		return object.NullHash, fmt.Errorf("%s does not name a commit: %w", spec, err)
	}
	return c.Tree, nil
}
