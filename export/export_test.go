package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

func testBook() *book.Book {
	return &book.Book{
		Title:  "The Moss Dragon",
		Author: "R. Finch",
		Pages: []book.Page{
			{Page: 1, Text: "Once upon a time there was a dragon made of moss."},
			{Page: 2, Text: "It slept under the old stone bridge."},
			{Page: 3, Text: "The end."},
		},
	}
}

func testExporter() *Exporter {
	return New(templates.NewRegistry(), imagecache.New(), nil)
}

func TestPresetMapping(t *testing.T) {
	tests := []struct {
		q       Quality
		scale   float64
		quality int
	}{
		{Draft, 1.0, 60},
		{Standard, 1.5, 80},
		{High, 2.0, 92},
		{Print, 3.0, 100},
		{Quality("nonsense"), 1.5, 80},
		{Quality(""), 1.5, 80},
	}
	for _, tt := range tests {
		scale, quality := tt.q.Preset()
		if scale != tt.scale || quality != tt.quality {
			t.Errorf("Preset(%q) = (%v, %v), want (%v, %v)", tt.q, scale, quality, tt.scale, tt.quality)
		}
	}
}

func TestPDFHasOnePagePerBookPage(t *testing.T) {
	e := testExporter()
	data, err := e.PDF(context.Background(), testBook(), Options{Quality: Draft})
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output does not start with %%PDF- header")
	}
	pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	if pages != 3 {
		t.Errorf("PDF has %d page objects, want 3", pages)
	}
}

func TestPDFDeterministic(t *testing.T) {
	e := testExporter()
	opts := Options{
		Quality:      Draft,
		CreationDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	a, err := e.PDF(context.Background(), testBook(), opts)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	for run := 0; run < 4; run++ {
		b, err := e.PDF(context.Background(), testBook(), opts)
		if err != nil {
			t.Fatalf("export %d: %v", run+2, err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("run %d: identical inputs produced different PDF bytes", run+2)
		}
	}
}

func TestLandscapePDFKeepsWideMediaBox(t *testing.T) {
	e := testExporter()
	data, err := e.PDF(context.Background(), testBook(), Options{Quality: Draft, SizeID: "landscape"})
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.Contains(data, []byte("/MediaBox [0 0 792.00 612.00]")) {
		t.Error("landscape export lost its 792x612 media box")
	}
	if bytes.Contains(data, []byte("/MediaBox [0 0 612.00 792.00]")) {
		t.Error("landscape export produced a portrait media box")
	}
}

func TestPDFCarriesMetadata(t *testing.T) {
	e := testExporter()
	data, err := e.PDF(context.Background(), testBook(), Options{Quality: Draft})
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.Contains(data, []byte("The Moss Dragon")) {
		t.Error("PDF missing title metadata")
	}
	if !bytes.Contains(data, []byte("R. Finch")) {
		t.Error("PDF missing author metadata")
	}
}

func TestImageSequenceFilenames(t *testing.T) {
	e := testExporter()

	images, err := e.ImageSequence(context.Background(), testBook(), Options{Quality: Draft})
	if err != nil {
		t.Fatalf("ImageSequence: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("got %d images, want 3", len(images))
	}
	wantNames := []string{"page-001.png", "page-002.png", "page-003.png"}
	for i, im := range images {
		if im.Filename != wantNames[i] {
			t.Errorf("image %d filename = %q, want %q", i, im.Filename, wantNames[i])
		}
		if !bytes.HasPrefix(im.Data, []byte("\x89PNG")) {
			t.Errorf("image %d is not PNG", i)
		}
	}

	jpgs, err := e.ImageSequence(context.Background(), testBook(), Options{Quality: Draft, Format: "jpeg"})
	if err != nil {
		t.Fatalf("ImageSequence jpeg: %v", err)
	}
	if jpgs[0].Filename != "page-001.jpg" {
		t.Errorf("jpeg filename = %q, want page-001.jpg", jpgs[0].Filename)
	}
	if !bytes.HasPrefix(jpgs[0].Data, []byte{0xff, 0xd8}) {
		t.Error("jpeg output missing JFIF magic")
	}
}

func TestProgressCallback(t *testing.T) {
	e := testExporter()
	var got []Progress
	_, err := e.PDF(context.Background(), testBook(), Options{
		Quality:    Draft,
		OnProgress: func(p Progress) { got = append(got, p) },
	})
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d progress reports, want 3", len(got))
	}
	for i, p := range got {
		if p.Current != i+1 || p.Total != 3 {
			t.Errorf("report %d = %+v, want current %d of 3", i, p, i+1)
		}
	}
	if got[2].Percent != 100 {
		t.Errorf("final percent = %v, want 100", got[2].Percent)
	}
}

func TestCropOverlayNeverExported(t *testing.T) {
	e := testExporter()
	opts := Options{Quality: Draft}

	plain, err := e.ImageSequence(context.Background(), testBook(), opts)
	if err != nil {
		t.Fatalf("plain export: %v", err)
	}

	opts.Overrides = func(int) render.PageOverrides {
		ov := render.DefaultPageOverrides()
		ov.ShowCropOverlay = true
		return ov
	}
	overlaid, err := e.ImageSequence(context.Background(), testBook(), opts)
	if err != nil {
		t.Fatalf("overlay export: %v", err)
	}

	for i := range plain {
		if !bytes.Equal(plain[i].Data, overlaid[i].Data) {
			t.Errorf("page %d changed when ShowCropOverlay was requested at export", i+1)
		}
	}
}

func TestExportCanceledContext(t *testing.T) {
	e := testExporter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.PDF(ctx, testBook(), Options{Quality: Draft})
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	var ee *ExportError
	if !errors.As(err, &ee) {
		t.Fatalf("error %T is not *ExportError", err)
	}
	if !strings.Contains(ee.Stage, "page 1") {
		t.Errorf("stage = %q, want a page stage", ee.Stage)
	}
}
