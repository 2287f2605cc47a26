package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/export"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

type exportFlags struct {
	size     string
	quality  string
	template string
	theme    string
	font     string
	output   string
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.size, "size", render.DefaultSizeID, "page size id (square, portrait, landscape, a4)")
	cmd.Flags().StringVar(&f.quality, "quality", string(export.Standard), "quality preset (draft, standard, high, print)")
	cmd.Flags().StringVar(&f.template, "template", templates.DefaultTemplateID, "template id")
	cmd.Flags().StringVar(&f.theme, "theme", "", "color theme id override")
	cmd.Flags().StringVar(&f.font, "font", "", "font family override")
	cmd.Flags().StringVarP(&f.output, "output", "o", ".", "output directory")
}

func (f *exportFlags) options(cmd *cobra.Command) export.Options {
	return export.Options{
		SizeID:     f.size,
		TemplateID: f.template,
		Quality:    export.Quality(f.quality),
		Customizations: render.Customizations{
			ThemeID:    f.theme,
			FontFamily: f.font,
		},
		OnProgress: func(p export.Progress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rpage %d/%d (%.0f%%)", p.Current, p.Total, p.Percent)
			if p.Current == p.Total {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		},
	}
}

func newExporter() *export.Exporter {
	return export.New(
		templates.NewRegistry(),
		imagecache.New(),
		templates.NewFontLoader(templates.DefaultFontServiceURL),
	)
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export <book.json>",
		Short: "Export a book to a print-ready PDF",
		Example: `  # Standard quality, square pages
  storybook export book.json

  # Print quality with the star frame template and the ocean theme
  storybook export book.json --quality print --template playful-star --theme ocean`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bk, err := book.LoadFile(args[0])
			if err != nil {
				return err
			}
			path, err := newExporter().WritePDF(cmd.Context(), bk, flags.options(cmd), flags.output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
