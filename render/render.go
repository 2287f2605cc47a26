package render

import (
	"context"
	"fmt"
	"math"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/templates"
)

// Renderer produces vector scenes for story pages. It is safe for concurrent
// use; the image cache coalesces duplicate fetches internally.
type Renderer struct {
	Registry *templates.Registry
	Images   *imagecache.Cache
	Size     PageDimensions
}

// NewRenderer builds a renderer for the named page size.
func NewRenderer(reg *templates.Registry, images *imagecache.Cache, sizeID string) (*Renderer, error) {
	if sizeID == "" {
		sizeID = DefaultSizeID
	}
	size, err := LookupSize(sizeID)
	if err != nil {
		return nil, err
	}
	return &Renderer{Registry: reg, Images: images, Size: size}, nil
}

// Render composes one page into a scene. Image fetch failures are not render
// errors: the illustration is simply resolved to its raw URL or omitted.
func (r *Renderer) Render(ctx context.Context, pg book.Page, tpl templates.Template, custom Customizations, over PageOverrides) (*Scene, error) {
	eff, err := BuildEffective(r.Registry, tpl, custom, over)
	if err != nil {
		return nil, err
	}

	W, H := r.Size.W, r.Size.H
	scene := &Scene{W: W, H: H}
	colors := eff.Template.Colors

	// 1. Background.
	scene.Nodes = append(scene.Nodes, ShapeNode{
		Outline: frames.Outline{Kind: frames.KindRect, W: W, H: H},
		Fill:    colors.Background,
	})

	// 2. Page edge shading.
	if eff.Template.Effects.PageShadow {
		edge := 0.012 * math.Min(W, H)
		scene.Nodes = append(scene.Nodes, ShapeNode{
			Outline: frames.Outline{
				Kind: frames.KindRect,
				X:    edge / 2, Y: edge / 2, W: W - edge, H: H - edge,
			},
			Stroke:      "#000000",
			StrokeWidth: edge,
			Opacity:     0.12,
		})
	}

	// 3. Decorative border.
	if eff.Template.Effects.DecorativeBorder {
		inset := 0.03 * math.Min(W, H)
		scene.Nodes = append(scene.Nodes, ShapeNode{
			Outline: frames.Outline{
				Kind: frames.KindRect,
				X:    inset, Y: inset, W: W - 2*inset, H: H - 2*inset,
				Radius: 0.015 * math.Min(W, H),
			},
			Stroke:      colors.Accent,
			StrokeWidth: 2,
			Opacity:     0.35,
		})
	}

	// 4-6. Image layer.
	if pg.ImageURL != "" {
		r.composeImage(ctx, scene, pg.ImageURL, eff)
	}

	// 7. Text layer.
	r.composeText(scene, pg.Text, eff)

	// 8. Page number.
	if eff.ShowPageNumbers {
		scene.Nodes = append(scene.Nodes, TextNode{
			Lines:      []string{fmt.Sprintf("%d", pg.Page)},
			X:          W / 2,
			Y:          H - 0.035*H,
			Advance:    12,
			FontFamily: eff.Template.Type.FontFamily,
			FontSize:   10,
			FontWeight: "normal",
			Fill:       colors.Secondary,
			Anchor:     "middle",
		})
	}

	return scene, nil
}

// composeImage appends the crop ghost, the clipped illustration, the frame
// border and the crop boundary, in that order.
func (r *Renderer) composeImage(ctx context.Context, scene *Scene, url string, eff EffectiveConfig) {
	W, H := scene.W, scene.H
	slot := eff.Template.Layout.Image

	// Padding insets the frame inside its region.
	pad := slot.Padding * math.Min(W, H)
	fx := eff.ImageRegion.X*W + pad
	fy := eff.ImageRegion.Y*H + pad
	fw := eff.ImageRegion.W*W - 2*pad
	fh := eff.ImageRegion.H*H - 2*pad
	if fw <= 0 || fh <= 0 {
		return
	}

	href := r.Images.Resolve(ctx, url)
	if href == "" {
		return
	}

	outline := frames.ForShape(slot.Shape, fx, fy, fw, fh)

	// Pan within the zoomed image: the drawn image is frame*zoom, its origin
	// shifted back by the crop fraction of the excess.
	zoom := eff.Crop.Zoom
	iw, ih := fw*zoom, fh*zoom
	ix := fx - (iw-fw)*eff.Crop.X
	iy := fy - (ih-fh)*eff.Crop.Y

	if eff.ShowCropOverlay {
		// Ghost of the whole drawn image, unclipped, so the cropped-away
		// parts stay visible while adjusting.
		scene.Nodes = append(scene.Nodes, ImageNode{
			Href: href, X: ix, Y: iy, W: iw, H: ih, Opacity: 0.3,
		})
	}

	clip := outline
	scene.Nodes = append(scene.Nodes, ImageNode{
		Href: href, X: ix, Y: iy, W: iw, H: ih,
		Clip:   &clip,
		Shadow: eff.Template.Effects.ImageShadow,
		Glow:   eff.Template.Effects.Glow,
	})

	if b := slot.Border; b != nil && b.Width > 0 {
		scene.Nodes = append(scene.Nodes, ShapeNode{
			Outline:     outline,
			Stroke:      b.Color,
			StrokeWidth: b.Width,
		})
	}

	if eff.ShowCropOverlay {
		scene.Nodes = append(scene.Nodes, ShapeNode{
			Outline:     outline,
			Stroke:      eff.Template.Colors.Accent,
			StrokeWidth: 2,
			Dash:        []float64{6, 4},
		})
	}
}

func (r *Renderer) composeText(scene *Scene, text string, eff EffectiveConfig) {
	plain := PlainText(text)
	if plain == "" {
		return
	}
	W, H := scene.W, scene.H
	tx := eff.TextRegion.X * W
	ty := eff.TextRegion.Y * H
	tw := eff.TextRegion.W * W
	th := eff.TextRegion.H * H

	typ := eff.Template.Type
	base := typ.FontSize * eff.TextScale
	size, lines := FitText(plain, tw, th, base, typ.LineHeight)
	if len(lines) == 0 {
		return
	}

	slot := eff.Template.Layout.Text
	if bg := slot.Background; bg != nil {
		pad := bg.Padding * math.Min(W, H)
		scene.Nodes = append(scene.Nodes, ShapeNode{
			Outline: frames.Outline{
				Kind: frames.KindRect,
				X:    tx - pad, Y: ty - pad, W: tw + 2*pad, H: th + 2*pad,
				Radius: bg.Radius,
			},
			Fill:        bg.Color,
			FillOpacity: bg.Opacity,
		})
	}

	advance := float64(size) * typ.LineHeight
	block := float64(len(lines)) * advance

	var anchor string
	var ax float64
	switch slot.Align {
	case "left":
		anchor, ax = "start", tx
	case "right":
		anchor, ax = "end", tx+tw
	default:
		anchor, ax = "middle", tx+tw/2
	}

	var firstBaseline float64
	switch slot.VAlign {
	case "top":
		firstBaseline = ty + float64(size)
	case "bottom":
		firstBaseline = ty + th - block + float64(size)
	default:
		firstBaseline = ty + (th-block)/2 + float64(size)
	}

	scene.Nodes = append(scene.Nodes, TextNode{
		Lines:      lines,
		X:          ax,
		Y:          firstBaseline,
		Advance:    advance,
		FontFamily: typ.FontFamily,
		FontSize:   float64(size),
		FontWeight: typ.FontWeight,
		Fill:       eff.Template.Colors.Text,
		Anchor:     anchor,
		Shadow:     eff.Template.Effects.TextShadow,
	})
}
