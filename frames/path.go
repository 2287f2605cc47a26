package frames

import (
	"fmt"
	"math"
	"strings"
)

// Op identifies a path segment operator.
type Op byte

const (
	OpMove Op = iota
	OpLine
	OpQuad
	OpCubic
	OpClose
)

// Segment is one path operator with its operands. X1/Y1 and X2/Y2 are the
// first and second control points where the operator uses them; X/Y is the
// endpoint.
type Segment struct {
	Op             Op
	X1, Y1, X2, Y2 float64
	X, Y           float64
}

// Path is an ordered list of segments forming one or more subpaths.
type Path []Segment

func (p *Path) MoveTo(x, y float64) { *p = append(*p, Segment{Op: OpMove, X: x, Y: y}) }
func (p *Path) LineTo(x, y float64) { *p = append(*p, Segment{Op: OpLine, X: x, Y: y}) }

func (p *Path) QuadTo(cx, cy, x, y float64) {
	*p = append(*p, Segment{Op: OpQuad, X1: cx, Y1: cy, X: x, Y: y})
}

func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	*p = append(*p, Segment{Op: OpCubic, X1: c1x, Y1: c1y, X2: c2x, Y2: c2y, X: x, Y: y})
}

func (p *Path) Close() { *p = append(*p, Segment{Op: OpClose}) }

// Closed reports whether the path ends with an explicit close directive.
func (p Path) Closed() bool {
	return len(p) > 0 && p[len(p)-1].Op == OpClose
}

// Bounds returns the axis-aligned bounding box of the rendered curve,
// estimated by sampling each segment. Good enough for layout math and
// containment checks; not a tight analytic box.
func (p Path) Bounds() (minX, minY, maxX, maxY float64) {
	const samples = 64
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	var curX, curY float64
	for _, s := range p {
		switch s.Op {
		case OpMove, OpLine:
			grow(s.X, s.Y)
			curX, curY = s.X, s.Y
		case OpQuad:
			for i := 1; i <= samples; i++ {
				t := float64(i) / samples
				mt := 1 - t
				x := mt*mt*curX + 2*mt*t*s.X1 + t*t*s.X
				y := mt*mt*curY + 2*mt*t*s.Y1 + t*t*s.Y
				grow(x, y)
			}
			curX, curY = s.X, s.Y
		case OpCubic:
			for i := 1; i <= samples; i++ {
				t := float64(i) / samples
				mt := 1 - t
				x := mt*mt*mt*curX + 3*mt*mt*t*s.X1 + 3*mt*t*t*s.X2 + t*t*t*s.X
				y := mt*mt*mt*curY + 3*mt*mt*t*s.Y1 + 3*mt*t*t*s.Y2 + t*t*t*s.Y
				grow(x, y)
			}
			curX, curY = s.X, s.Y
		case OpClose:
		}
	}
	return minX, minY, maxX, maxY
}

// SVGData serializes the path as an SVG "d" attribute.
func (p Path) SVGData() string {
	var sb strings.Builder
	for i, s := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch s.Op {
		case OpMove:
			fmt.Fprintf(&sb, "M %s %s", svgNum(s.X), svgNum(s.Y))
		case OpLine:
			fmt.Fprintf(&sb, "L %s %s", svgNum(s.X), svgNum(s.Y))
		case OpQuad:
			fmt.Fprintf(&sb, "Q %s %s %s %s", svgNum(s.X1), svgNum(s.Y1), svgNum(s.X), svgNum(s.Y))
		case OpCubic:
			fmt.Fprintf(&sb, "C %s %s %s %s %s %s",
				svgNum(s.X1), svgNum(s.Y1), svgNum(s.X2), svgNum(s.Y2), svgNum(s.X), svgNum(s.Y))
		case OpClose:
			sb.WriteByte('Z')
		}
	}
	return sb.String()
}

// Bounds of the outline regardless of variant.
func (o Outline) Bounds() (minX, minY, maxX, maxY float64) {
	switch o.Kind {
	case KindRect:
		return o.X, o.Y, o.X + o.W, o.Y + o.H
	case KindCircle, KindEllipse:
		return o.CX - o.RX, o.CY - o.RY, o.CX + o.RX, o.CY + o.RY
	default:
		return o.Path.Bounds()
	}
}

// ToPath lowers any outline variant to an explicit closed path. Rects and
// ellipses are converted with cubic approximations so that a single path
// consumer can rasterize every shape.
func (o Outline) ToPath() Path {
	switch o.Kind {
	case KindRect:
		if o.Radius > 0 {
			return roundedRectPath(o.X, o.Y, o.W, o.H, o.Radius)
		}
		var p Path
		p.MoveTo(o.X, o.Y)
		p.LineTo(o.X+o.W, o.Y)
		p.LineTo(o.X+o.W, o.Y+o.H)
		p.LineTo(o.X, o.Y+o.H)
		p.Close()
		return p
	case KindCircle, KindEllipse:
		return ellipsePath(o.CX, o.CY, o.RX, o.RY)
	default:
		return o.Path
	}
}

// kappa is the control-point factor for approximating a quarter circle with
// one cubic Bezier.
const kappa = 0.5522847498307936

func ellipsePath(cx, cy, rx, ry float64) Path {
	kx, ky := kappa*rx, kappa*ry
	var p Path
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	p.CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	p.CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	p.CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	p.Close()
	return p
}

func roundedRectPath(x, y, w, h, r float64) Path {
	r = math.Min(r, math.Min(w, h)/2)
	k := kappa * r
	var p Path
	p.MoveTo(x+r, y)
	p.LineTo(x+w-r, y)
	p.CubicTo(x+w-r+k, y, x+w, y+r-k, x+w, y+r)
	p.LineTo(x+w, y+h-r)
	p.CubicTo(x+w, y+h-r+k, x+w-r+k, y+h, x+w-r, y+h)
	p.LineTo(x+r, y+h)
	p.CubicTo(x+r-k, y+h, x, y+h-r+k, x, y+h-r)
	p.LineTo(x, y+r)
	p.CubicTo(x, y+r-k, x+r-k, y, x+r, y)
	p.Close()
	return p
}

func svgNum(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
