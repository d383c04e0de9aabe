package main

import (
	"fmt"
	"strings"

	"github.com/geovault/geovault/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var all bool
	var allowEmpty bool
	var signKey string
	var paths []string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes as a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			opts := repo.CommitOptions{
				Message:     message,
				All:         all,
				AllowEmpty:  allowEmpty,
				PathFilters: paths,
			}

			if cmd.Flags().Changed("sign-key") || signKey != "" {
				signer, keyPath, err := newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
				opts.Signer = signer
				fmt.Fprintf(cmd.OutOrStdout(), "Signing with key %s\n", keyPath)
			}

			commit, hash, err := r.Commit(opts)
			if err != nil {
				return err
			}

			branch := "HEAD"
			if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/heads/") {
				branch = strings.TrimPrefix(head, "refs/heads/")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, shortHash(string(hash)), commit.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "stage modified tracked paths before committing")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "permit a commit with an unchanged tree")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key to sign the commit with")
	cmd.Flags().StringSliceVar(&paths, "path", nil, "restrict the commit to matching paths")

	return cmd
}
