package main

import (
	"fmt"

	"github.com/geovault/geovault/pkg/object"
	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create an empty geovault repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			f, err := object.ParseFormat(format)
			if err != nil {
				return err
			}
			r, err := repo.Init(dir, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty geovault repository in %s\n", r.VaultDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "binary", "object serialization format (binary or text)")
	return cmd
}
