// Package export rasterizes vector scenes into multi-page PDFs or per-page
// image files. Export uses the same renderer as the preview, so exported
// pages are pixel-consistent with what the user saw.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/raster"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

// Quality names an export preset.
type Quality string

const (
	Draft    Quality = "draft"
	Standard Quality = "standard"
	High     Quality = "high"
	Print    Quality = "print"
)

type preset struct {
	Scale   float64 // raster pixels per point
	Quality int     // JPEG encode quality, 0-100
}

// Preset maps a quality name to its (scale, encode quality) tuple; unknown
// names get the standard preset.
func (q Quality) Preset() (float64, int) {
	switch q {
	case Draft:
		return 1.0, 60
	case High:
		return 2.0, 92
	case Print:
		return 3.0, 100
	default:
		return 1.5, 80
	}
}

// Progress reports per-page export completion.
type Progress struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// ExportError wraps failures of the PDF or raster pipeline. Partial output
// is always discarded.
type ExportError struct {
	Stage string
	Err   error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export failed at %s: %v", e.Stage, e.Err) }
func (e *ExportError) Unwrap() error { return e.Err }

// Options configure one export run.
type Options struct {
	SizeID     string
	TemplateID string
	Quality    Quality
	Format     string // image export: "png" (default) or "jpeg"

	Customizations render.Customizations
	// Overrides supplies per-page settings by page index; nil means
	// defaults everywhere.
	Overrides func(pageIndex int) render.PageOverrides

	// CreationDate pins the PDF metadata date so identical inputs
	// produce byte-identical output. Zero means the current time.
	CreationDate time.Time

	OnProgress func(Progress)
}

func (o Options) overridesFor(i int) render.PageOverrides {
	if o.Overrides == nil {
		return render.DefaultPageOverrides()
	}
	ov := o.Overrides(i)
	ov.ShowCropOverlay = false // never exported
	return ov
}

// PageImage is one exported page image.
type PageImage struct {
	Page     int
	Filename string
	Data     []byte
}

// Exporter drives book exports. Concurrent export requests serialize: a new
// request waits for the previous one to finish.
type Exporter struct {
	Registry *templates.Registry
	Images   *imagecache.Cache
	Fonts    *templates.FontLoader

	exporting sync.Mutex
}

// New builds an exporter sharing the session's caches.
func New(reg *templates.Registry, images *imagecache.Cache, fonts *templates.FontLoader) *Exporter {
	return &Exporter{Registry: reg, Images: images, Fonts: fonts}
}

// PDF renders every page in order and returns a compressed multi-page PDF.
func (e *Exporter) PDF(ctx context.Context, bk *book.Book, opts Options) ([]byte, error) {
	e.exporting.Lock()
	defer e.exporting.Unlock()

	renderer, tpl, err := e.setup(ctx, opts)
	if err != nil {
		return nil, err
	}
	scale, quality := opts.Quality.Preset()
	size := renderer.Size

	// Size already carries the oriented dimensions, so the orientation
	// string stays "P": gofpdf swaps Wd/Ht for "L" and would flip
	// landscape sizes back to portrait.
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: size.W, Ht: size.H},
	})
	pdf.SetCompression(true)
	// Image XObjects are emitted in map order unless the catalog is
	// sorted, which would make repeated exports differ byte for byte.
	pdf.SetCatalogSort(true)
	if !opts.CreationDate.IsZero() {
		pdf.SetCreationDate(opts.CreationDate)
	}
	pdf.SetTitle(bk.Title, false)
	pdf.SetAuthor(bk.Author, false)
	pdf.SetCreator("storybook", false)

	ras := raster.New(e.Images, e.Fonts)
	total := len(bk.Pages)
	for i, pg := range bk.Pages {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: err}
		}
		data, err := e.renderPageJPEG(ctx, renderer, ras, pg, tpl, opts, i, scale, quality)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("page-%d", pg.Page)
		pdf.AddPage()
		imgOpts := gofpdf.ImageOptions{ImageType: "JPG"}
		pdf.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, size.W, size.H, false, imgOpts, 0, "")
		if pdf.Err() {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: pdf.Error()}
		}
		reportProgress(opts, i+1, total)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &ExportError{Stage: "pdf output", Err: err}
	}
	return buf.Bytes(), nil
}

// Images renders every page in order to independent PNG or JPEG blobs with
// zero-padded filenames.
func (e *Exporter) ImageSequence(ctx context.Context, bk *book.Book, opts Options) ([]PageImage, error) {
	e.exporting.Lock()
	defer e.exporting.Unlock()

	renderer, tpl, err := e.setup(ctx, opts)
	if err != nil {
		return nil, err
	}
	scale, quality := opts.Quality.Preset()
	jpg := opts.Format == "jpeg" || opts.Format == "jpg"
	ext := "png"
	if jpg {
		ext = "jpg"
	}

	ras := raster.New(e.Images, e.Fonts)
	out := make([]PageImage, 0, len(bk.Pages))
	total := len(bk.Pages)
	for i, pg := range bk.Pages {
		if err := ctx.Err(); err != nil {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: err}
		}
		scene, err := renderer.Render(ctx, pg, tpl, opts.Customizations, opts.overridesFor(i))
		if err != nil {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: err}
		}
		img, err := ras.Rasterize(ctx, scene, scale)
		if err != nil {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: err}
		}
		var buf bytes.Buffer
		if jpg {
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
		} else {
			err = png.Encode(&buf, img)
		}
		if err != nil {
			return nil, &ExportError{Stage: fmt.Sprintf("page %d", pg.Page), Err: err}
		}
		out = append(out, PageImage{
			Page:     pg.Page,
			Filename: fmt.Sprintf("page-%03d.%s", pg.Page, ext),
			Data:     buf.Bytes(),
		})
		reportProgress(opts, i+1, total)
	}
	return out, nil
}

// WritePDF exports and saves <slug>.pdf into dir, returning the path.
func (e *Exporter) WritePDF(ctx context.Context, bk *book.Book, opts Options, dir string) (string, error) {
	data, err := e.PDF(ctx, bk, opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, bk.Slug()+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	slog.Info("wrote PDF", "path", path, "pages", len(bk.Pages), "bytes", len(data))
	return path, nil
}

// WriteImages exports and saves the page sequence into dir.
func (e *Exporter) WriteImages(ctx context.Context, bk *book.Book, opts Options, dir string) ([]string, error) {
	images, err := e.ImageSequence(ctx, bk, opts)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(images))
	for _, im := range images {
		path := filepath.Join(dir, im.Filename)
		if err := os.WriteFile(path, im.Data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	slog.Info("wrote image sequence", "dir", dir, "pages", len(paths))
	return paths, nil
}

// setup resolves the renderer and effective template, and blocks until the
// remote fonts the configuration needs are loaded.
func (e *Exporter) setup(ctx context.Context, opts Options) (*render.Renderer, templates.Template, error) {
	renderer, err := render.NewRenderer(e.Registry, e.Images, opts.SizeID)
	if err != nil {
		return nil, templates.Template{}, err
	}
	tpl := e.Registry.Get(opts.TemplateID)

	family := tpl.Type.FontFamily
	if opts.Customizations.FontFamily != "" {
		family = opts.Customizations.FontFamily
	}
	if e.Fonts != nil {
		if err := e.Fonts.Load(ctx, family); err != nil {
			return nil, templates.Template{}, &ExportError{Stage: "font preload", Err: err}
		}
	}
	return renderer, tpl, nil
}

func (e *Exporter) renderPageJPEG(ctx context.Context, renderer *render.Renderer, ras *raster.Rasterizer,
	pg book.Page, tpl templates.Template, opts Options, idx int, scale float64, quality int) ([]byte, error) {

	scene, err := renderer.Render(ctx, pg, tpl, opts.Customizations, opts.overridesFor(idx))
	if err != nil {
		return nil, &ExportError{Stage: fmt.Sprintf("page %d render", pg.Page), Err: err}
	}
	img, err := ras.Rasterize(ctx, scene, scale)
	if err != nil {
		return nil, &ExportError{Stage: fmt.Sprintf("page %d raster", pg.Page), Err: err}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &ExportError{Stage: fmt.Sprintf("page %d encode", pg.Page), Err: err}
	}
	return buf.Bytes(), nil
}

func reportProgress(opts Options, current, total int) {
	if opts.OnProgress == nil {
		return
	}
	opts.OnProgress(Progress{
		Current: current,
		Total:   total,
		Percent: float64(current) / float64(total) * 100,
	})
}
