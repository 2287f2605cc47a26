// Package render turns one story page plus an effective template
// configuration into a vector scene, and serializes scenes to SVG. The same
// scenes feed the on-screen preview, thumbnails, and the export pipeline, so
// every consumer stays pixel-consistent.
package render

import (
	"fmt"

	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/templates"
)

// InputError marks caller mistakes: unknown page size ids or malformed
// overrides that would produce non-positive regions.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

func inputErrorf(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// PageDimensions is a named page size in typographic points.
type PageDimensions struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	W    float64 `json:"width"`
	H    float64 `json:"height"`
}

// Orientation derives from the aspect ratio; square pages count as portrait.
func (d PageDimensions) Orientation() string {
	if d.W > d.H {
		return "landscape"
	}
	return "portrait"
}

// DefaultSizeID is the size used when the host does not pick one.
const DefaultSizeID = "square"

var pageSizes = []PageDimensions{
	{ID: "square", Name: `Square 8.5" x 8.5"`, W: 612, H: 612},
	{ID: "portrait", Name: `Portrait 8.5" x 11"`, W: 612, H: 792},
	{ID: "landscape", Name: `Landscape 11" x 8.5"`, W: 792, H: 612},
	{ID: "a4", Name: "A4", W: 595.28, H: 841.89},
}

// Sizes lists the supported page sizes in stable order.
func Sizes() []PageDimensions {
	out := make([]PageDimensions, len(pageSizes))
	copy(out, pageSizes)
	return out
}

// LookupSize resolves a size id; unknown ids are an InputError.
func LookupSize(id string) (PageDimensions, error) {
	for _, s := range pageSizes {
		if s.ID == id {
			return s, nil
		}
	}
	return PageDimensions{}, inputErrorf("unknown page size %q", id)
}

// FrameSettings scales and offsets the illustration frame on the page.
// Offsets are fractions of the page.
type FrameSettings struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// TextSettings scales and offsets the text block; the scale also multiplies
// the font size.
type TextSettings struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// CropSettings zoom and pan the illustration within its frame.
type CropSettings struct {
	Zoom float64 `json:"cropZoom"`
	X    float64 `json:"cropX"`
	Y    float64 `json:"cropY"`
}

// Clamp limits for the override ranges.
const (
	MinFrameScale = 0.3
	MaxFrameScale = 1.5
	MinTextScale  = 0.5
	MaxTextScale  = 2.0
	MinCropZoom   = 1.0
	MaxCropZoom   = 3.0
)

func DefaultFrameSettings() FrameSettings { return FrameSettings{Scale: 1} }
func DefaultTextSettings() TextSettings   { return TextSettings{Scale: 1} }
func DefaultCropSettings() CropSettings   { return CropSettings{Zoom: 1, X: 0.5, Y: 0.5} }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped returns the settings with the scale forced into range.
func (f FrameSettings) Clamped() FrameSettings {
	f.Scale = clamp(f.Scale, MinFrameScale, MaxFrameScale)
	return f
}

// Clamped returns the settings with the scale forced into range.
func (t TextSettings) Clamped() TextSettings {
	t.Scale = clamp(t.Scale, MinTextScale, MaxTextScale)
	return t
}

// Clamped returns the settings with zoom and pan forced into range.
func (c CropSettings) Clamped() CropSettings {
	c.Zoom = clamp(c.Zoom, MinCropZoom, MaxCropZoom)
	c.X = clamp(c.X, 0, 1)
	c.Y = clamp(c.Y, 0, 1)
	return c
}

// Customizations are the global, template-independent overrides. Zero values
// mean "inherit from the template".
type Customizations struct {
	FontFamily      string       `json:"fontFamily,omitempty"`
	FontSize        float64      `json:"fontSize,omitempty"`
	ThemeID         string       `json:"themeId,omitempty"`
	FrameShape      frames.Shape `json:"frameShape,omitempty"`
	TextAlign       string       `json:"textAlign,omitempty"`
	ShowPageNumbers *bool        `json:"showPageNumbers,omitempty"`
}

// PageOverrides bundles the per-page settings plus the render-time flags.
type PageOverrides struct {
	Frame           FrameSettings `json:"frame"`
	Text            TextSettings  `json:"text"`
	Crop            CropSettings  `json:"crop"`
	ShowCropOverlay bool          `json:"-"`
}

// DefaultPageOverrides is the identity override set.
func DefaultPageOverrides() PageOverrides {
	return PageOverrides{
		Frame: DefaultFrameSettings(),
		Text:  DefaultTextSettings(),
		Crop:  DefaultCropSettings(),
	}
}

// Region is a fractional rectangle within the unit page.
type Region struct {
	X, Y, W, H float64
}

// EffectiveConfig is the deep merge of template, global customizations and
// per-page overrides, with fixed precedence template < global < page.
type EffectiveConfig struct {
	Template        templates.Template
	ImageRegion     Region
	TextRegion      Region
	TextScale       float64
	Crop            CropSettings
	ShowPageNumbers bool
	ShowCropOverlay bool
}

// BuildEffective merges one page's configuration. The registry resolves a
// theme override; reg may be nil when no theme override is set.
func BuildEffective(reg *templates.Registry, tpl templates.Template, custom Customizations, over PageOverrides) (EffectiveConfig, error) {
	eff := tpl.Clone()

	if custom.FontFamily != "" {
		eff.Type.FontFamily = custom.FontFamily
	}
	if custom.FontSize > 0 {
		eff.Type.FontSize = custom.FontSize
	}
	if custom.ThemeID != "" && reg != nil {
		th := reg.Theme(custom.ThemeID)
		eff.Colors = th
	}
	if custom.FrameShape != "" {
		eff.Layout.Image.Shape = custom.FrameShape
	}
	if custom.TextAlign != "" {
		eff.Layout.Text.Align = custom.TextAlign
	}

	// Zero-value settings mean "use the template default"; substitute
	// before clamping so a zero scale is not coerced to the floor.
	frame := over.Frame
	if frame.Scale == 0 {
		frame = DefaultFrameSettings()
	}
	text := over.Text
	if text.Scale == 0 {
		text = DefaultTextSettings()
	}
	crop := over.Crop
	if crop.Zoom == 0 {
		crop = DefaultCropSettings()
	}
	frame = frame.Clamped()
	text = text.Clamped()
	crop = crop.Clamped()

	img := eff.Layout.Image
	imgRegion := applySettings(Region{img.X, img.Y, img.W, img.H}, frame.Scale, frame.OffsetX, frame.OffsetY)
	txt := eff.Layout.Text
	txtRegion := applySettings(Region{txt.X, txt.Y, txt.W, txt.H}, text.Scale, text.OffsetX, text.OffsetY)

	if imgRegion.W <= 0 || imgRegion.H <= 0 {
		return EffectiveConfig{}, inputErrorf("frame override produces non-positive image region %.3fx%.3f", imgRegion.W, imgRegion.H)
	}
	if txtRegion.W <= 0 || txtRegion.H <= 0 {
		return EffectiveConfig{}, inputErrorf("text override produces non-positive text region %.3fx%.3f", txtRegion.W, txtRegion.H)
	}

	show := true
	if custom.ShowPageNumbers != nil {
		show = *custom.ShowPageNumbers
	}

	return EffectiveConfig{
		Template:        eff,
		ImageRegion:     imgRegion,
		TextRegion:      txtRegion,
		TextScale:       text.Scale,
		Crop:            crop,
		ShowPageNumbers: show,
		ShowCropOverlay: over.ShowCropOverlay,
	}, nil
}

// applySettings scales a base region about its center and shifts it by the
// fractional offsets.
func applySettings(base Region, scale, offX, offY float64) Region {
	w := base.W * scale
	h := base.H * scale
	return Region{
		X: base.X + (base.W-w)/2 + offX,
		Y: base.Y + (base.H-h)/2 + offY,
		W: w,
		H: h,
	}
}
