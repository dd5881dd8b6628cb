package cmd

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/radiofrance/imgtag/pkg/helpers"
	"github.com/radiofrance/imgtag/pkg/logger"
)

type renderOpts struct {
	Output string `mapstructure:"output"`
}

func renderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render an html template using the image helpers",
		Long: `imgtag render executes a Go html/template file where the remote_image_tag_link
and remote_image_tag functions are available:

  <img src="{{ remote_image_tag_link "blog/header.jpg" }}">
  {{ remote_image_tag "logo.png" "width=120" "loading=lazy" }}`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			bindPFlagsSnakeCase(cmd.Flags())

			if err := doRender(cmd, args[0]); err != nil {
				logger.Fatalf("Render failed: %v", err)
			}
		},
	}

	cmd.Flags().StringP("output", "o", "", "Write the result to this file instead of stdout.")

	return cmd
}

func doRender(cmd *cobra.Command, templatePath string) error {
	opts, err := loadRootOpts()
	if err != nil {
		return err
	}

	cmdOpts := renderOpts{}
	if err := hydrateOptsFromViper(&cmdOpts); err != nil {
		return err
	}

	res, mode, err := newResolver(opts)
	if err != nil {
		return err
	}

	tmpl, err := template.New(filepath.Base(templatePath)).
		Funcs(helpers.FuncMap(cmd.Context(), res, mode)).
		ParseFiles(templatePath)
	if err != nil {
		return fmt.Errorf("failed to parse template file: %w", err)
	}

	if cmdOpts.Output != "" {
		return renderToFile(tmpl, cmdOpts.Output)
	}

	return executeTemplate(tmpl, cmd.OutOrStdout())
}

func executeTemplate(tmpl *template.Template, w io.Writer) error {
	if err := tmpl.Execute(w, nil); err != nil {
		return fmt.Errorf("failed to render template file: %w", err)
	}

	return nil
}

func renderToFile(tmpl *template.Template, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("can't create output file: %w", err)
	}

	if err := executeTemplate(tmpl, file); err != nil {
		_ = file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("can't write output file: %w", err)
	}

	return nil
}
