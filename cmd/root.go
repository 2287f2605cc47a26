// Package cmd holds the storybook CLI: listing templates, exporting books
// to PDF or image sequences, and serving the interactive compositor.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "storybook",
		Short: "Compose illustrated story pages into print-ready books",
		Long: `Storybook lays out story text and illustrations with declarative page
templates and exports the result as a PDF or a per-page image sequence.

It can also serve an interactive compositor for editing layouts in a browser.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImagesCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
