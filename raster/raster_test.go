package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/render"
)

func testScene() *render.Scene {
	return &render.Scene{
		W: 100, H: 100,
		Nodes: []render.Node{
			render.ShapeNode{
				Outline: frames.Outline{Kind: frames.KindRect, W: 100, H: 100},
				Fill:    "#336699",
			},
			render.ShapeNode{
				Outline:     frames.ForShape(frames.Circle, 20, 20, 60, 60),
				Stroke:      "#ffffff",
				StrokeWidth: 3,
			},
			render.TextNode{
				Lines: []string{"hello"}, X: 50, Y: 80, Advance: 14,
				FontFamily: "Times", FontSize: 12, Fill: "#ffffff", Anchor: "middle",
			},
		},
	}
}

func TestRasterizeSizeAndBackground(t *testing.T) {
	r := New(imagecache.New(), nil)
	img, err := r.Rasterize(context.Background(), testScene(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("bounds = %v, want 200x200", b)
	}
	// The background fill covers the corner.
	if c := img.RGBAAt(1, 1); c.B < 100 || c.R > 80 {
		t.Fatalf("corner = %v, want blue fill", c)
	}
}

func TestRasterizeDeterministic(t *testing.T) {
	r := New(imagecache.New(), nil)
	a, err := r.Rasterize(context.Background(), testScene(), 1.5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Rasterize(context.Background(), testScene(), 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("two rasterizations of the same scene differ")
	}
}

func TestClippedImageStaysInsideOutline(t *testing.T) {
	// Solid red source image as a data URI.
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range src.Pix {
		if i%4 == 0 {
			src.Pix[i] = 255
		}
		if i%4 == 3 {
			src.Pix[i] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	cache := imagecache.New()
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	clip := frames.ForShape(frames.Circle, 25, 25, 50, 50)
	scene := &render.Scene{
		W: 100, H: 100,
		Nodes: []render.Node{
			render.ImageNode{Href: uri, X: 0, Y: 0, W: 100, H: 100, Clip: &clip},
		},
	}
	r := New(cache, nil)
	img, err := r.Rasterize(context.Background(), scene, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Center of the circle is red; far corner stays white.
	if c := img.RGBAAt(50, 50); c.R < 200 {
		t.Fatalf("center = %v, want red", c)
	}
	if c := img.RGBAAt(2, 2); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Fatalf("corner = %v, want white (clipped)", c)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
	}{
		{"#ffffff", color.RGBA{255, 255, 255, 255}},
		{"#1d2433", color.RGBA{0x1d, 0x24, 0x33, 255}},
		{"#f00", color.RGBA{255, 0, 0, 255}},
		{"garbage", color.RGBA{A: 255}},
		{"", color.RGBA{A: 255}},
	}
	for _, tc := range cases {
		if got := parseColor(tc.in); got != tc.want {
			t.Errorf("parseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDashPattern(t *testing.T) {
	dash := []float64{6, 4}
	if !dashOn(3, dash, 10) {
		t.Fatal("distance 3 should be on")
	}
	if dashOn(8, dash, 10) {
		t.Fatal("distance 8 should be off")
	}
	if !dashOn(13, dash, 10) {
		t.Fatal("distance 13 wraps to on")
	}
}

func TestFaceFallsBackToBundledFonts(t *testing.T) {
	fc := newFaceCache(nil)
	if fc.face("Baloo 2", "bold", 16) == nil {
		t.Fatal("no face for remote family without loader")
	}
	if fc.face("Times", "normal", 12) == nil {
		t.Fatal("no face for system family")
	}
	if fc.face("Times", "normal", 0) != nil {
		t.Fatal("zero size should yield no face")
	}
}
