package raster

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

// faceCache memoizes opentype faces per (family, weight, size). Remote
// families use their fetched font program once available; until then (and
// for the system families) the bundled Go fonts stand in, keeping raster
// output deterministic and fully offline-capable.
type faceCache struct {
	loader *templates.FontLoader

	mu    sync.Mutex
	fonts map[string]*sfnt.Font
	faces map[string]font.Face
}

func newFaceCache(loader *templates.FontLoader) *faceCache {
	return &faceCache{
		loader: loader,
		fonts:  make(map[string]*sfnt.Font),
		faces:  make(map[string]font.Face),
	}
}

func (fc *faceCache) face(family, weight string, size float64) font.Face {
	if size <= 0 {
		return nil
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%.2f", family, weight, size)
	if f, ok := fc.faces[key]; ok {
		return f
	}

	fnt := fc.fontFor(family, weight)
	if fnt == nil {
		return nil
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil
	}
	fc.faces[key] = face
	return face
}

func (fc *faceCache) fontFor(family, weight string) *sfnt.Font {
	fkey := family + "|" + weight
	if f, ok := fc.fonts[fkey]; ok {
		return f
	}

	var data []byte
	if fc.loader != nil {
		data = fc.loader.Bytes(family)
	}
	if data == nil {
		data = builtinTTF(family, weight)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		// Remote bytes were not a usable font program; fall back.
		f, err = opentype.Parse(builtinTTF(family, weight))
		if err != nil {
			return nil
		}
	}
	fc.fonts[fkey] = f
	return f
}

func builtinTTF(family, weight string) []byte {
	if face, ok := templates.LookupFace(family); ok && face.Category == "monospace" {
		return gomono.TTF
	}
	if weight == "bold" {
		return gobold.TTF
	}
	return goregular.TTF
}

// drawLines paints every line of a text node with the given face and color,
// honoring the node's anchor. dx/dy shift the block (used for text shadow).
func drawLines(dst *image.RGBA, face font.Face, n render.TextNode, scale, dx, dy float64, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, line := range n.Lines {
		width := font.MeasureString(face, line)
		x := fixed.Int26_6(int64((n.X*scale + dx) * 64))
		switch n.Anchor {
		case "middle":
			x -= width / 2
		case "end":
			x -= width
		}
		y := (n.Y + float64(i)*n.Advance) * scale
		d.Dot = fixed.Point26_6{X: x, Y: fixed.Int26_6(int64((y + dy) * 64))}
		d.DrawString(line)
	}
}
