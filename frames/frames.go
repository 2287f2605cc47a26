// Package frames emits vector outlines for the closed set of frame shapes a
// page illustration can be clipped to. Every outline is expressed in the same
// absolute coordinate system as the page canvas; callers never apply
// transforms downstream.
package frames

import "math"

// Shape names a frame shape. Unknown names fall back to a plain rectangle.
type Shape string

const (
	Rectangle Shape = "rectangle"
	Rounded   Shape = "rounded"
	Circle    Shape = "circle"
	Oval      Shape = "oval"
	Cloud     Shape = "cloud"
	Heart     Shape = "heart"
	Star      Shape = "star"
	Hexagon   Shape = "hexagon"
	Arch      Shape = "arch"
	Blob      Shape = "blob"
	Scallop   Shape = "scallop"
)

// Shapes lists every supported shape in stable order.
func Shapes() []Shape {
	return []Shape{
		Rectangle, Rounded, Circle, Oval, Cloud, Heart,
		Star, Hexagon, Arch, Blob, Scallop,
	}
}

// Kind tags the outline variant.
type Kind int

const (
	KindRect Kind = iota
	KindCircle
	KindEllipse
	KindPath
)

// Outline is a tagged vector shape. Exactly the fields of the active Kind
// are meaningful.
type Outline struct {
	Kind Kind

	// KindRect
	X, Y, W, H float64
	Radius     float64

	// KindCircle / KindEllipse
	CX, CY, RX, RY float64

	// KindPath
	Path Path
}

// ForShape returns the outline of shape fitted to the rectangle
// (x, y, w, h). All path outlines are closed.
func ForShape(shape Shape, x, y, w, h float64) Outline {
	switch shape {
	case Rounded:
		return Outline{Kind: KindRect, X: x, Y: y, W: w, H: h, Radius: 0.08 * math.Min(w, h)}
	case Circle:
		r := math.Min(w, h) / 2
		return Outline{Kind: KindCircle, CX: x + w/2, CY: y + h/2, RX: r, RY: r}
	case Oval:
		return Outline{Kind: KindEllipse, CX: x + w/2, CY: y + h/2, RX: w / 2, RY: h / 2}
	case Cloud:
		return Outline{Kind: KindPath, Path: cloudPath(x, y, w, h)}
	case Heart:
		return Outline{Kind: KindPath, Path: heartPath(x, y, w, h)}
	case Star:
		return Outline{Kind: KindPath, Path: starPath(x, y, w, h)}
	case Hexagon:
		return Outline{Kind: KindPath, Path: hexagonPath(x, y, w, h)}
	case Arch:
		return Outline{Kind: KindPath, Path: archPath(x, y, w, h)}
	case Blob:
		return Outline{Kind: KindPath, Path: blobPath(x, y, w, h)}
	case Scallop:
		return Outline{Kind: KindPath, Path: scallopPath(x, y, w, h)}
	default:
		return Outline{Kind: KindRect, X: x, Y: y, W: w, H: h}
	}
}

// heartPath builds a heart from six cubics; control points are fractions of
// the bounding rectangle so the curve never escapes it.
func heartPath(x, y, w, h float64) Path {
	fx := func(f float64) float64 { return x + f*w }
	fy := func(f float64) float64 { return y + f*h }
	var p Path
	p.MoveTo(fx(0.50), fy(0.30))
	p.CubicTo(fx(0.50), fy(0.18), fx(0.42), fy(0.08), fx(0.30), fy(0.08))
	p.CubicTo(fx(0.13), fy(0.08), fx(0.05), fy(0.20), fx(0.05), fy(0.34))
	p.CubicTo(fx(0.05), fy(0.55), fx(0.25), fy(0.74), fx(0.50), fy(0.92))
	p.CubicTo(fx(0.75), fy(0.74), fx(0.95), fy(0.55), fx(0.95), fy(0.34))
	p.CubicTo(fx(0.95), fy(0.20), fx(0.87), fy(0.08), fx(0.70), fy(0.08))
	p.CubicTo(fx(0.58), fy(0.08), fx(0.50), fy(0.18), fx(0.50), fy(0.30))
	p.Close()
	return p
}

func cloudPath(x, y, w, h float64) Path {
	fx := func(f float64) float64 { return x + f*w }
	fy := func(f float64) float64 { return y + f*h }
	var p Path
	p.MoveTo(fx(0.25), fy(0.78))
	p.CubicTo(fx(0.10), fy(0.80), fx(0.04), fy(0.64), fx(0.12), fy(0.54))
	p.CubicTo(fx(0.04), fy(0.40), fx(0.14), fy(0.26), fx(0.30), fy(0.30))
	p.CubicTo(fx(0.35), fy(0.14), fx(0.55), fy(0.10), fx(0.65), fy(0.22))
	p.CubicTo(fx(0.80), fy(0.12), fx(0.96), fy(0.26), fx(0.92), fy(0.44))
	p.CubicTo(fx(0.98), fy(0.56), fx(0.94), fy(0.72), fx(0.80), fy(0.74))
	p.CubicTo(fx(0.72), fy(0.88), fx(0.40), fy(0.90), fx(0.25), fy(0.78))
	p.Close()
	return p
}

func archPath(x, y, w, h float64) Path {
	fx := func(f float64) float64 { return x + f*w }
	fy := func(f float64) float64 { return y + f*h }
	var p Path
	p.MoveTo(fx(0), fy(1))
	p.LineTo(fx(0), fy(0.40))
	p.CubicTo(fx(0), fy(0.12), fx(0.22), fy(0), fx(0.50), fy(0))
	p.CubicTo(fx(0.78), fy(0), fx(1), fy(0.12), fx(1), fy(0.40))
	p.LineTo(fx(1), fy(1))
	p.Close()
	return p
}

func blobPath(x, y, w, h float64) Path {
	fx := func(f float64) float64 { return x + f*w }
	fy := func(f float64) float64 { return y + f*h }
	var p Path
	p.MoveTo(fx(0.50), fy(0.03))
	p.CubicTo(fx(0.78), fy(0.03), fx(0.97), fy(0.20), fx(0.95), fy(0.45))
	p.CubicTo(fx(0.93), fy(0.68), fx(0.85), fy(0.92), fx(0.58), fy(0.95))
	p.CubicTo(fx(0.32), fy(0.98), fx(0.08), fy(0.85), fx(0.06), fy(0.60))
	p.CubicTo(fx(0.04), fy(0.35), fx(0.22), fy(0.03), fx(0.50), fy(0.03))
	p.Close()
	return p
}

const (
	scallopsPerSide = 8
	scallopDepth    = 0.12
)

// scallopPath walks the rectangle perimeter, replacing each side with eight
// quadratic scallops that dip toward the interior.
func scallopPath(x, y, w, h float64) Path {
	d := scallopDepth * math.Min(w, h)
	sw := w / scallopsPerSide
	sh := h / scallopsPerSide
	var p Path
	p.MoveTo(x, y)
	for i := 0; i < scallopsPerSide; i++ { // top, left to right
		p.QuadTo(x+(float64(i)+0.5)*sw, y+d, x+float64(i+1)*sw, y)
	}
	for i := 0; i < scallopsPerSide; i++ { // right, top to bottom
		p.QuadTo(x+w-d, y+(float64(i)+0.5)*sh, x+w, y+float64(i+1)*sh)
	}
	for i := 0; i < scallopsPerSide; i++ { // bottom, right to left
		p.QuadTo(x+w-(float64(i)+0.5)*sw, y+h-d, x+w-float64(i+1)*sw, y+h)
	}
	for i := 0; i < scallopsPerSide; i++ { // left, bottom to top
		p.QuadTo(x+d, y+h-(float64(i)+0.5)*sh, x, y+h-float64(i+1)*sh)
	}
	p.Close()
	return p
}

func starPath(x, y, w, h float64) Path {
	cx, cy := x+w/2, y+h/2
	outer := math.Min(w, h) / 2
	inner := 0.4 * outer
	var p Path
	for i := 0; i < 10; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		px := cx + r*math.Cos(a)
		py := cy + r*math.Sin(a)
		if i == 0 {
			p.MoveTo(px, py)
		} else {
			p.LineTo(px, py)
		}
	}
	p.Close()
	return p
}

func hexagonPath(x, y, w, h float64) Path {
	cx, cy := x+w/2, y+h/2
	r := math.Min(w, h) / 2
	var p Path
	for i := 0; i < 6; i++ {
		a := -math.Pi/2 + float64(i)*math.Pi/3
		px := cx + r*math.Cos(a)
		py := cy + r*math.Sin(a)
		if i == 0 {
			p.MoveTo(px, py)
		} else {
			p.LineTo(px, py)
		}
	}
	p.Close()
	return p
}
