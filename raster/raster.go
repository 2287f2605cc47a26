// Package raster paints vector scenes into pixel buffers. It is the shared
// back end of PDF and image export: both rasterize the exact scenes the
// preview renders, so exported pages match the screen.
package raster

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

// Rasterizer converts scenes to RGBA images at a given supersampling scale.
type Rasterizer struct {
	Images *imagecache.Cache
	Fonts  *templates.FontLoader
	faces  *faceCache
}

// New builds a rasterizer. fonts may be nil; the bundled Go fonts are then
// used for every family.
func New(images *imagecache.Cache, fonts *templates.FontLoader) *Rasterizer {
	return &Rasterizer{Images: images, Fonts: fonts, faces: newFaceCache(fonts)}
}

// Rasterize paints the scene at scale pixels per point onto a white base.
// Missing or unfetchable images are skipped; everything else is
// deterministic for identical input.
func (r *Rasterizer) Rasterize(ctx context.Context, scene *render.Scene, scale float64) (*image.RGBA, error) {
	w := int(math.Ceil(scene.W * scale))
	h := int(math.Ceil(scene.H * scale))
	if w < 1 || h < 1 {
		w, h = 1, 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	for _, n := range scene.Nodes {
		switch n := n.(type) {
		case render.ShapeNode:
			r.paintShape(dst, n, scale)
		case render.ImageNode:
			r.paintImage(ctx, dst, n, scale)
		case render.TextNode:
			r.paintText(dst, n, scale)
		}
	}
	return dst, nil
}

func (r *Rasterizer) paintShape(dst *image.RGBA, n render.ShapeNode, scale float64) {
	opacity := n.Opacity
	if opacity == 0 {
		opacity = 1
	}
	if n.Fill != "" {
		c := parseColor(n.Fill)
		a := opacity
		if n.FillOpacity > 0 {
			a *= n.FillOpacity
		}
		fillPath(dst, n.Outline.ToPath(), scale, withAlpha(c, a))
	}
	if n.Stroke != "" && n.StrokeWidth > 0 {
		c := withAlpha(parseColor(n.Stroke), opacity)
		strokePath(dst, n.Outline.ToPath(), scale, n.StrokeWidth, n.Dash, c)
	}
}

func (r *Rasterizer) paintImage(ctx context.Context, dst *image.RGBA, n render.ImageNode, scale float64) {
	src, err := r.Images.Image(ctx, n.Href)
	if err != nil {
		// Not a render error; the page simply loses its illustration.
		slog.Debug("skipping unreadable illustration", "err", err)
		return
	}

	dr := image.Rect(
		int(math.Floor(n.X*scale)), int(math.Floor(n.Y*scale)),
		int(math.Ceil((n.X+n.W)*scale)), int(math.Ceil((n.Y+n.H)*scale)),
	)

	var mask *image.Alpha
	if n.Clip != nil {
		mask = pathMask(dst.Bounds(), n.Clip.ToPath(), scale)
		if n.Shadow {
			drawShadow(dst, mask, scale)
		}
		if n.Glow {
			drawGlow(dst, mask, scale)
		}
	}

	opts := &xdraw.Options{}
	if mask != nil {
		opts.DstMask = mask
	}
	if n.Opacity > 0 && n.Opacity < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha{A: uint8(n.Opacity * 255)})
	}
	xdraw.CatmullRom.Scale(dst, dr, src, src.Bounds(), xdraw.Over, opts)
}

func (r *Rasterizer) paintText(dst *image.RGBA, n render.TextNode, scale float64) {
	face := r.faces.face(n.FontFamily, n.FontWeight, n.FontSize*scale)
	if face == nil {
		return
	}
	c := parseColor(n.Fill)
	if n.Opacity > 0 && n.Opacity < 1 {
		c = withAlpha(c, n.Opacity)
	}
	if n.Shadow {
		sc := color.RGBA{A: 100}
		drawLines(dst, face, n, scale, 1.2*scale, 1.2*scale, sc)
	}
	drawLines(dst, face, n, scale, 0, 0, c)
}

// drawShadow paints a soft offset silhouette of the clip mask.
func drawShadow(dst *image.RGBA, mask *image.Alpha, scale float64) {
	off := image.Pt(int(3*scale), int(4*scale))
	shadow := image.NewUniform(color.RGBA{A: 90})
	b := mask.Bounds().Add(off).Intersect(dst.Bounds())
	draw.DrawMask(dst, b, shadow, image.Point{}, mask, b.Min.Sub(off), draw.Over)
}

// drawGlow approximates blur-and-merge with four faint offset silhouettes.
func drawGlow(dst *image.RGBA, mask *image.Alpha, scale float64) {
	d := int(math.Max(2*scale, 2))
	glow := image.NewUniform(color.RGBA{R: 255, G: 244, B: 200, A: 40})
	for _, off := range []image.Point{{d, 0}, {-d, 0}, {0, d}, {0, -d}} {
		b := mask.Bounds().Add(off).Intersect(dst.Bounds())
		draw.DrawMask(dst, b, glow, image.Point{}, mask, b.Min.Sub(off), draw.Over)
	}
}

// fillPath rasterizes a closed path scaled into device space.
func fillPath(dst *image.RGBA, p frames.Path, scale float64, c color.Color) {
	b := dst.Bounds()
	ras := vector.NewRasterizer(b.Dx(), b.Dy())
	appendPath(ras, p, scale)
	ras.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// pathMask rasterizes a path into an alpha mask for clipping.
func pathMask(bounds image.Rectangle, p frames.Path, scale float64) *image.Alpha {
	mask := image.NewAlpha(bounds)
	ras := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	appendPath(ras, p, scale)
	ras.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}

func appendPath(ras *vector.Rasterizer, p frames.Path, scale float64) {
	s := float32(scale)
	for _, seg := range p {
		switch seg.Op {
		case frames.OpMove:
			ras.MoveTo(float32(seg.X)*s, float32(seg.Y)*s)
		case frames.OpLine:
			ras.LineTo(float32(seg.X)*s, float32(seg.Y)*s)
		case frames.OpQuad:
			ras.QuadTo(float32(seg.X1)*s, float32(seg.Y1)*s, float32(seg.X)*s, float32(seg.Y)*s)
		case frames.OpCubic:
			ras.CubeTo(float32(seg.X1)*s, float32(seg.Y1)*s, float32(seg.X2)*s, float32(seg.Y2)*s,
				float32(seg.X)*s, float32(seg.Y)*s)
		case frames.OpClose:
			ras.ClosePath()
		}
	}
}

// strokePath approximates a stroked (optionally dashed) outline by
// flattening it to polylines and filling one quad per retained segment.
func strokePath(dst *image.RGBA, p frames.Path, scale, width float64, dash []float64, c color.Color) {
	pts := flatten(p)
	if len(pts) < 2 {
		return
	}
	b := dst.Bounds()
	ras := vector.NewRasterizer(b.Dx(), b.Dy())
	half := width / 2

	var dashTotal float64
	for _, d := range dash {
		dashTotal += d
	}
	traveled := 0.0
	for i := 1; i < len(pts); i++ {
		a, e := pts[i-1], pts[i]
		segLen := math.Hypot(e.x-a.x, e.y-a.y)
		if segLen == 0 {
			continue
		}
		if dashTotal > 0 && !dashOn(traveled+segLen/2, dash, dashTotal) {
			traveled += segLen
			continue
		}
		traveled += segLen
		// Perpendicular offset.
		nx := -(e.y - a.y) / segLen * half
		ny := (e.x - a.x) / segLen * half
		s := float32(scale)
		ras.MoveTo(float32(a.x+nx)*s, float32(a.y+ny)*s)
		ras.LineTo(float32(e.x+nx)*s, float32(e.y+ny)*s)
		ras.LineTo(float32(e.x-nx)*s, float32(e.y-ny)*s)
		ras.LineTo(float32(a.x-nx)*s, float32(a.y-ny)*s)
		ras.ClosePath()
	}
	ras.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func dashOn(dist float64, dash []float64, total float64) bool {
	m := math.Mod(dist, total)
	for i, d := range dash {
		if m < d {
			return i%2 == 0
		}
		m -= d
	}
	return true
}

type point struct{ x, y float64 }

// flatten samples every segment into a polyline in point coordinates.
func flatten(p frames.Path) []point {
	const steps = 16
	var pts []point
	var start, cur point
	for _, seg := range p {
		switch seg.Op {
		case frames.OpMove:
			cur = point{seg.X, seg.Y}
			start = cur
			pts = append(pts, cur)
		case frames.OpLine:
			cur = point{seg.X, seg.Y}
			pts = append(pts, cur)
		case frames.OpQuad:
			for i := 1; i <= steps; i++ {
				t := float64(i) / steps
				mt := 1 - t
				pts = append(pts, point{
					mt*mt*cur.x + 2*mt*t*seg.X1 + t*t*seg.X,
					mt*mt*cur.y + 2*mt*t*seg.Y1 + t*t*seg.Y,
				})
			}
			cur = point{seg.X, seg.Y}
		case frames.OpCubic:
			for i := 1; i <= steps; i++ {
				t := float64(i) / steps
				mt := 1 - t
				pts = append(pts, point{
					mt*mt*mt*cur.x + 3*mt*mt*t*seg.X1 + 3*mt*t*t*seg.X2 + t*t*t*seg.X,
					mt*mt*mt*cur.y + 3*mt*mt*t*seg.Y1 + 3*mt*t*t*seg.Y2 + t*t*t*seg.Y,
				})
			}
			cur = point{seg.X, seg.Y}
		case frames.OpClose:
			pts = append(pts, start)
			cur = start
		}
	}
	return pts
}

func parseColor(s string) color.RGBA {
	if len(s) == 0 || s[0] != '#' {
		return color.RGBA{A: 255}
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{A: 255}
	}
	var v [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexDigit(hex[2*i])
		lo, ok2 := hexDigit(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.RGBA{A: 255}
		}
		v[i] = hi<<4 | lo
	}
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 255}
}

func hexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func withAlpha(c color.RGBA, a float64) color.RGBA {
	if a >= 1 {
		return c
	}
	if a < 0 {
		a = 0
	}
	// Premultiplied alpha.
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(float64(c.A) * a),
	}
}
