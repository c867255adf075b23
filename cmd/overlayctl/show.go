package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
)

var showOpts struct {
	priority string
	duration string
	stdin    bool
	quiet    bool
}

var showCmd = &cobra.Command{
	Use:   "show [TEXT...]",
	Short: "Show text on the overlay",
	Long: `Replace the overlay content with TEXT and print the new content id.

A duration of 0 keeps the content until it is dismissed or replaced.

Examples:
  overlayctl show "Recording"
  overlayctl show -p critical -d 0 "Battery low"
  make 2>&1 | tail -n1 | overlayctl show --stdin`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVarP(&showOpts.priority, "priority", "p", "", "Priority: low, normal, high, critical")
	showCmd.Flags().StringVarP(&showOpts.duration, "duration", "d", "", "Auto-dismiss after this long (e.g. 5s, 1m, 0)")
	showCmd.Flags().BoolVar(&showOpts.stdin, "stdin", false, "Read text from stdin")
	showCmd.Flags().BoolVarP(&showOpts.quiet, "quiet", "q", false, "Do not print the content id")
}

func runShow(cmd *cobra.Command, args []string) error {
	text, err := showText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	priority := showOpts.priority
	if priority == "" {
		priority = cfg.Show.Priority
	}
	if _, err := model.ParsePriority(priority); err != nil {
		return err
	}

	raw := showOpts.duration
	if raw == "" {
		raw = cfg.Show.Duration
	}
	var duration config.Duration
	if err := duration.UnmarshalText([]byte(raw)); err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	id, err := client.Show(ctx, text, priority, duration.Duration())
	if err != nil {
		return err
	}
	logger.Debug("content shown", "content_id", id, "priority", priority, "duration", duration.Duration())

	if !showOpts.quiet {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

// showText joins args, or reads stdin when --stdin is set.
func showText(stdin io.Reader, args []string) (string, error) {
	if showOpts.stdin {
		if len(args) > 0 {
			return "", fmt.Errorf("--stdin cannot be combined with TEXT arguments")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no text given, pass TEXT or --stdin")
	}
	return strings.Join(args, " "), nil
}
