package publish

import (
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Result is the outcome of publishing one image.
type Result struct {
	Identifier string
	URL        string
	Error      error
	// Width and Height are zero when the format has no decoder.
	Width  int
	Height int
}

func (r Result) size() string {
	if r.Width == 0 || r.Height == 0 {
		return "-"
	}

	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Report lists results sorted by identifier.
type Report struct {
	Results []Result
}

// Failed returns the results holding an error.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, result := range r.Results {
		if result.Error != nil {
			failed = append(failed, result)
		}
	}

	return failed
}

// Err joins the errors of every failed result, nil when all images were published.
func (r *Report) Err() error {
	var errs []error
	for _, result := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", result.Identifier, result.Error))
	}

	return errors.Join(errs...)
}

// WriteTable renders the report as a table.
func (r *Report) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	var data [][]string
	for _, result := range r.Results {
		status, link := "ok", result.URL
		if result.Error != nil {
			status, link = "failed", result.Error.Error()
		}
		data = append(data, []string{result.Identifier, result.size(), status, link})
	}

	table.AppendBulk(data)

	table.SetHeader([]string{"Image", "Size", "Status", "URL"})
	table.Render()
}

// WriteManifest writes the published links as a YAML mapping of identifier to URL.
// Failed images are left out.
func (r *Report) WriteManifest(w io.Writer) error {
	manifest := make(map[string]string, len(r.Results))
	for _, result := range r.Results {
		if result.Error == nil {
			manifest[result.Identifier] = result.URL
		}
	}

	encoder := yaml.NewEncoder(w)
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("can't write manifest: %w", err)
	}

	return encoder.Close()
}
