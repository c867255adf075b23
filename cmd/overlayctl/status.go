package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/adapter/output"
)

var statusOpts struct {
	format   string
	template string
	textMax  int
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is on the overlay",
	Long: `Print the overlay state: whether the surface is held open, by how many
holders, and the current content.

Examples:
  overlayctl status
  overlayctl status --format json
  overlayctl status --template '{{.Priority}}: {{.Text | truncate 40}}'`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "", "Output format: plain, json, yaml")
	statusCmd.Flags().StringVar(&statusOpts.template, "template", "", "Go template for the plain content line")
	statusCmd.Flags().IntVar(&statusOpts.textMax, "text-max", 0, "Truncate text in plain output (0 = unlimited)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := statusFormatter(false)
	if err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	st, err := client.Status(ctx)
	if err != nil {
		return err
	}
	current, err := client.Current(ctx)
	if err != nil {
		return err
	}

	return formatter.FormatStatus(cmd.OutOrStdout(), output.NewStatus(st, current))
}

// statusFormatter builds the formatter selected by --format, falling back
// to the configured default.
func statusFormatter(compact bool) (output.Formatter, error) {
	name := statusOpts.format
	if name == "" {
		name = cfg.Status.Format
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	if statusOpts.template != "" {
		if err := output.ParseTemplate(statusOpts.template); err != nil {
			return nil, err
		}
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = statusOpts.template
	opts.TextMax = statusOpts.textMax
	opts.Compact = compact
	return output.NewFormatter(format, opts), nil
}
