package render

import "github.com/opd-ai/storybook/frames"

// Scene is the vector tree for one page: a root viewport of the page size
// and an ordered node list, back to front. The node list is the single
// source of truth for preview SVG and raster export.
type Scene struct {
	W, H  float64
	Nodes []Node
}

// Node is a scene element. The concrete types below form a closed set.
type Node interface {
	sceneNode()
}

// ShapeNode paints or strokes a frame outline.
type ShapeNode struct {
	Outline     frames.Outline
	Fill        string
	FillOpacity float64 // 0 means fully opaque when Fill is set
	Stroke      string
	StrokeWidth float64
	Dash        []float64
	Opacity     float64 // group opacity, 0 means 1
}

// ImageNode places a resolved illustration. Href is either a data URI or the
// original URL (cross-origin fallback). When Clip is set the image is
// clipped to the outline; Opacity below 1 is used for the crop ghost.
type ImageNode struct {
	Href       string
	X, Y, W, H float64
	Clip       *frames.Outline
	Opacity    float64 // 0 means 1
	Shadow     bool
	Glow       bool
}

// TextNode is a block of pre-wrapped lines sharing one style. X is the
// anchor abscissa interpreted per Anchor; Y is the baseline of the first
// line and Advance the per-line baseline step.
type TextNode struct {
	Lines      []string
	X, Y       float64
	Advance    float64
	FontFamily string
	FontSize   float64
	FontWeight string
	Fill       string
	Anchor     string // start, middle, end
	Opacity    float64
	Shadow     bool
}

func (ShapeNode) sceneNode() {}
func (ImageNode) sceneNode() {}
func (TextNode) sceneNode()  {}
