package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss [ID]",
	Short: "Dismiss overlay content",
	Long: `Dismiss the content with ID if it is still on the overlay.

Without ID the content currently shown is dismissed. Dismissing an id
that has already been replaced does nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDismiss,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the overlay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := callContext(cmd.Context())
		defer cancel()
		return client.ClearAll(ctx)
	},
}

func init() {
	rootCmd.AddCommand(dismissCmd)
	rootCmd.AddCommand(clearCmd)
}

func runDismiss(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		current, err := client.Current(ctx)
		if err != nil {
			return err
		}
		if !current.Present {
			logger.Debug("nothing to dismiss")
			return nil
		}
		id = current.ID
	}

	if id == "" {
		return fmt.Errorf("empty content id")
	}
	logger.Debug("dismissing", "content_id", id)
	return client.Dismiss(ctx, id)
}
