package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the built-in page templates, color themes, and page sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := templates.NewRegistry()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tFRAME\tFONT")
			for _, t := range reg.Templates() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, t.Category, t.Layout.Image.Shape, t.Type.FontFamily)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Themes:")
			for _, th := range reg.Themes() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%s\n", th.ID, th.Name)
			}

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Page sizes:")
			for _, s := range render.Sizes() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%s (%.0fx%.0f pt)\n", s.ID, s.Name, s.W, s.H)
			}
			return nil
		},
	}
}
