package main

import (
	"fmt"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var message string
	var del bool
	var force bool

	cmd := &cobra.Command{
		Use:   "tag [name]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if len(args) == 0 {
				names, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			if del {
				if err := r.DeleteTag(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag %s\n", args[0])
				return nil
			}

			tip, err := r.ResolveRef(repo.HeadRef)
			if err != nil {
				return fmt.Errorf("cannot resolve HEAD: %w", err)
			}
			if message != "" {
				tagHash, err := r.CreateAnnotatedTag(args[0], tip, message, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], shortHash(string(tagHash)))
				return nil
			}
			return r.CreateTag(args[0], tip, force)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "create an annotated tag with the given message")
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")

	return cmd
}
