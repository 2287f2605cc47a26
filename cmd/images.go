package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/storybook/book"
)

func newImagesCmd() *cobra.Command {
	var flags exportFlags
	var format string

	cmd := &cobra.Command{
		Use:   "images <book.json>",
		Short: "Export a book as a per-page image sequence",
		Example: `  # PNG pages into ./out
  storybook images book.json -o out

  # High-quality JPEGs
  storybook images book.json --format jpeg --quality high`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bk, err := book.LoadFile(args[0])
			if err != nil {
				return err
			}
			opts := flags.options(cmd)
			opts.Format = format
			paths, err := newExporter().WriteImages(cmd.Context(), bk, opts, flags.output)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "png", "image format (png or jpeg)")
	return cmd
}
