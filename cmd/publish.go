package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/publish"
)

type publishOpts struct {
	Concurrency int      `mapstructure:"concurrency"`
	Exclude     []string `mapstructure:"exclude"`
	Manifest    string   `mapstructure:"manifest"`
}

func publishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish every image of the staging directory",
		Long: `imgtag publish resolves every image of the staging directory in build mode, so the
provider uploads the missing ones. Files matching a pattern of the .imgtagignore file
of the staging directory are skipped.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			if err := doPublish(cmd); err != nil {
				logger.Fatalf("Publish failed: %v", err)
			}
		},
	}

	cmd.Flags().Int("concurrency", publish.DefaultConcurrency,
		"Maximum number of images published at the same time.")
	cmd.Flags().StringSlice("exclude", nil,
		"Pattern of images to skip, in .dockerignore syntax. Can be repeated.")
	cmd.Flags().String("manifest", "",
		"Write the published links to this file, as a YAML mapping of image identifier to URL.")

	return cmd
}

func doPublish(cmd *cobra.Command) error {
	opts, err := loadRootOpts()
	if err != nil {
		return err
	}

	cmdOpts := publishOpts{}
	if err := hydrateOptsFromViper(&cmdOpts); err != nil {
		return err
	}

	res, _, err := newResolver(opts)
	if err != nil {
		return err
	}

	report, err := publish.Run(cmd.Context(), publish.Options{
		Resolver:    res,
		Exclude:     cmdOpts.Exclude,
		Concurrency: cmdOpts.Concurrency,
	})
	if err != nil {
		return err
	}

	report.WriteTable(cmd.OutOrStdout())

	if cmdOpts.Manifest != "" {
		if err := writeManifest(report, cmdOpts.Manifest); err != nil {
			return err
		}
		logger.Infof("Manifest written to %s", cmdOpts.Manifest)
	}

	if err := report.Err(); err != nil {
		return fmt.Errorf("%d images failed: %w", len(report.Failed()), err)
	}

	return nil
}

func writeManifest(report *publish.Report, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("can't create manifest file: %w", err)
	}

	if err := report.WriteManifest(file); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}
