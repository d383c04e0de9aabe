package main

import (
	"fmt"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get or set repository configuration (e.g. user.name, user.email)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if len(args) == 1 {
				val, err := r.ConfigGet(args[0])
				if err != nil {
					return err
				}
				if val == "" {
					return fmt.Errorf("%s is not set", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			}
			return r.ConfigSet(args[0], args[1])
		},
	}
}
