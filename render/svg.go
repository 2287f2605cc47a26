package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/templates"
)

// SVG serializes a scene to a standalone SVG document.
func SVG(s *Scene) string {
	w := &svgWriter{}
	w.write(s)
	return w.out.String()
}

// RenderSVG composes a page and serializes it in one step.
func (r *Renderer) RenderSVG(ctx context.Context, pg book.Page, tpl templates.Template, custom Customizations, over PageOverrides) (string, error) {
	scene, err := r.Render(ctx, pg, tpl, custom, over)
	if err != nil {
		return "", err
	}
	return SVG(scene), nil
}

type svgWriter struct {
	out  strings.Builder
	defs strings.Builder
	seq  int
}

func (w *svgWriter) write(s *Scene) {
	var body strings.Builder
	for _, n := range s.Nodes {
		switch n := n.(type) {
		case ShapeNode:
			w.shape(&body, n)
		case ImageNode:
			w.image(&body, n)
		case TextNode:
			w.text(&body, n)
		}
	}

	fmt.Fprintf(&w.out,
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(s.W), num(s.H), num(s.W), num(s.H))
	if w.defs.Len() > 0 {
		w.out.WriteString("<defs>")
		w.out.WriteString(w.defs.String())
		w.out.WriteString("</defs>")
	}
	w.out.WriteString(body.String())
	w.out.WriteString("</svg>")
}

func (w *svgWriter) nextID(prefix string) string {
	w.seq++
	return fmt.Sprintf("%s%d", prefix, w.seq)
}

func (w *svgWriter) shape(body *strings.Builder, n ShapeNode) {
	var attrs strings.Builder
	if n.Fill != "" {
		fmt.Fprintf(&attrs, ` fill="%s"`, n.Fill)
		if n.FillOpacity > 0 && n.FillOpacity < 1 {
			fmt.Fprintf(&attrs, ` fill-opacity="%s"`, num(n.FillOpacity))
		}
	} else {
		attrs.WriteString(` fill="none"`)
	}
	if n.Stroke != "" {
		fmt.Fprintf(&attrs, ` stroke="%s" stroke-width="%s"`, n.Stroke, num(n.StrokeWidth))
		if len(n.Dash) > 0 {
			parts := make([]string, len(n.Dash))
			for i, d := range n.Dash {
				parts[i] = num(d)
			}
			fmt.Fprintf(&attrs, ` stroke-dasharray="%s"`, strings.Join(parts, " "))
		}
	}
	if n.Opacity > 0 && n.Opacity < 1 {
		fmt.Fprintf(&attrs, ` opacity="%s"`, num(n.Opacity))
	}
	writeOutline(body, n.Outline, attrs.String())
}

func writeOutline(body *strings.Builder, o frames.Outline, attrs string) {
	switch o.Kind {
	case frames.KindRect:
		if o.Radius > 0 {
			fmt.Fprintf(body, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s"%s/>`,
				num(o.X), num(o.Y), num(o.W), num(o.H), num(o.Radius), attrs)
		} else {
			fmt.Fprintf(body, `<rect x="%s" y="%s" width="%s" height="%s"%s/>`,
				num(o.X), num(o.Y), num(o.W), num(o.H), attrs)
		}
	case frames.KindCircle:
		fmt.Fprintf(body, `<circle cx="%s" cy="%s" r="%s"%s/>`, num(o.CX), num(o.CY), num(o.RX), attrs)
	case frames.KindEllipse:
		fmt.Fprintf(body, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s"%s/>`,
			num(o.CX), num(o.CY), num(o.RX), num(o.RY), attrs)
	default:
		fmt.Fprintf(body, `<path d="%s"%s/>`, o.Path.SVGData(), attrs)
	}
}

func (w *svgWriter) image(body *strings.Builder, n ImageNode) {
	var attrs strings.Builder
	if n.Clip != nil {
		id := w.nextID("clip")
		w.defs.WriteString(`<clipPath id="` + id + `">`)
		writeOutline(&w.defs, *n.Clip, "")
		w.defs.WriteString(`</clipPath>`)
		fmt.Fprintf(&attrs, ` clip-path="url(#%s)"`, id)
	}
	if n.Opacity > 0 && n.Opacity < 1 {
		fmt.Fprintf(&attrs, ` opacity="%s"`, num(n.Opacity))
	}
	var filter string
	switch {
	case n.Glow:
		id := w.nextID("glow")
		fmt.Fprintf(&w.defs,
			`<filter id="%s" x="-20%%" y="-20%%" width="140%%" height="140%%"><feGaussianBlur stdDeviation="6" result="blur"/><feMerge><feMergeNode in="blur"/><feMergeNode in="SourceGraphic"/></feMerge></filter>`, id)
		filter = fmt.Sprintf(` filter="url(#%s)"`, id)
	case n.Shadow:
		id := w.nextID("shadow")
		fmt.Fprintf(&w.defs,
			`<filter id="%s" x="-20%%" y="-20%%" width="140%%" height="140%%"><feDropShadow dx="3" dy="4" stdDeviation="4" flood-opacity="0.35"/></filter>`, id)
		filter = fmt.Sprintf(` filter="url(#%s)"`, id)
	}
	if filter != "" {
		fmt.Fprintf(body, `<g%s>`, filter)
	}
	fmt.Fprintf(body,
		`<image xlink:href="%s" href="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none"%s/>`,
		escape(n.Href), escape(n.Href), num(n.X), num(n.Y), num(n.W), num(n.H), attrs.String())
	if filter != "" {
		body.WriteString("</g>")
	}
}

func (w *svgWriter) text(body *strings.Builder, n TextNode) {
	weight := ""
	if n.FontWeight == "bold" {
		weight = ` font-weight="bold"`
	}
	var style string
	if n.Shadow {
		style = ` style="text-shadow:1px 1px 2px rgba(0,0,0,0.4)"`
	}
	opacity := ""
	if n.Opacity > 0 && n.Opacity < 1 {
		opacity = fmt.Sprintf(` opacity="%s"`, num(n.Opacity))
	}
	fmt.Fprintf(body,
		`<text x="%s" y="%s" font-family="%s" font-size="%s" fill="%s" text-anchor="%s"%s%s%s>`,
		num(n.X), num(n.Y), escape(n.FontFamily), num(n.FontSize), n.Fill, n.Anchor, weight, style, opacity)
	for i, line := range n.Lines {
		y := n.Y + float64(i)*n.Advance
		fmt.Fprintf(body, `<tspan x="%s" y="%s">%s</tspan>`, num(n.X), num(y), escape(line))
	}
	body.WriteString("</text>")
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
