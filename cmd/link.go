package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radiofrance/imgtag/pkg/logger"
)

func linkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link ID...",
		Short: "Print the link of one or more images",
		Long: `imgtag link prints the link of each image identifier, one per line.

In build mode the image is published by the provider when needed, and must exist in the
staging directory. In any other mode the link is a relative path to the staging directory.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			if err := doLink(cmd, args); err != nil {
				logger.Fatalf("Link failed: %v", err)
			}
		},
	}
}

func doLink(cmd *cobra.Command, identifiers []string) error {
	opts, err := loadRootOpts()
	if err != nil {
		return err
	}

	res, mode, err := newResolver(opts)
	if err != nil {
		return err
	}

	for _, identifier := range identifiers {
		link, err := res.ResolveLink(cmd.Context(), mode, identifier)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
	}

	return nil
}
