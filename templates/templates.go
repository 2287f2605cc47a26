// Package templates holds the named, immutable layout recipes a storybook
// page can be composed with: slot geometry, typography, color themes, and
// effect flags, plus the font catalog and remote font loader.
package templates

import "github.com/opd-ai/storybook/frames"

// Template is one page recipe. Registry templates are shared and must not be
// mutated; use Clone to derive a customized copy.
type Template struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Category string     `json:"category" yaml:"category"`
	Layout   Layout     `json:"layout" yaml:"layout"`
	Type     Typography `json:"typography" yaml:"typography"`
	Colors   ColorTheme `json:"colors" yaml:"colors"`
	Effects  Effects    `json:"effects" yaml:"effects"`
}

// Layout positions the image and text slots inside the unit page.
type Layout struct {
	Image ImageSlot `json:"image" yaml:"image"`
	Text  TextSlot  `json:"text" yaml:"text"`
}

// ImageSlot is the fractional region the illustration frame occupies.
type ImageSlot struct {
	X       float64      `json:"x" yaml:"x"`
	Y       float64      `json:"y" yaml:"y"`
	W       float64      `json:"w" yaml:"w"`
	H       float64      `json:"h" yaml:"h"`
	Shape   frames.Shape `json:"shape" yaml:"shape"`
	Padding float64      `json:"padding,omitempty" yaml:"padding,omitempty"`
	Border  *Border      `json:"border,omitempty" yaml:"border,omitempty"`
}

// TextSlot is the fractional region the story text occupies.
type TextSlot struct {
	X          float64         `json:"x" yaml:"x"`
	Y          float64         `json:"y" yaml:"y"`
	W          float64         `json:"w" yaml:"w"`
	H          float64         `json:"h" yaml:"h"`
	Align      string          `json:"align" yaml:"align"`   // left, center, right
	VAlign     string          `json:"valign" yaml:"valign"` // top, center, bottom
	Background *TextBackground `json:"background,omitempty" yaml:"background,omitempty"`
}

// Border strokes the frame outline.
type Border struct {
	Color string  `json:"color" yaml:"color"`
	Width float64 `json:"width" yaml:"width"`
}

// TextBackground draws a rounded swatch behind the text slot.
type TextBackground struct {
	Color   string  `json:"color" yaml:"color"`
	Opacity float64 `json:"opacity" yaml:"opacity"`
	Padding float64 `json:"padding" yaml:"padding"`
	Radius  float64 `json:"radius" yaml:"radius"`
}

// Typography is the base text treatment; sizes are typographic points.
type Typography struct {
	FontFamily string  `json:"fontFamily" yaml:"fontFamily"`
	FontSize   float64 `json:"fontSize" yaml:"fontSize"`
	LineHeight float64 `json:"lineHeight" yaml:"lineHeight"`
	FontWeight string  `json:"fontWeight" yaml:"fontWeight"` // normal, bold
}

// ColorTheme is the four-color palette a template paints with.
type ColorTheme struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Background string `json:"background" yaml:"background"`
	Text       string `json:"text" yaml:"text"`
	Accent     string `json:"accent" yaml:"accent"`
	Secondary  string `json:"secondary" yaml:"secondary"`
}

// Effects are the optional decorations a template switches on.
type Effects struct {
	PageShadow       bool `json:"pageShadow,omitempty" yaml:"pageShadow,omitempty"`
	ImageShadow      bool `json:"imageShadow,omitempty" yaml:"imageShadow,omitempty"`
	DecorativeBorder bool `json:"decorativeBorder,omitempty" yaml:"decorativeBorder,omitempty"`
	Glow             bool `json:"glow,omitempty" yaml:"glow,omitempty"`
	TextShadow       bool `json:"textShadow,omitempty" yaml:"textShadow,omitempty"`
}

// Clone returns a deep copy of t, safe to mutate.
func (t Template) Clone() Template {
	c := t
	if t.Layout.Image.Border != nil {
		b := *t.Layout.Image.Border
		c.Layout.Image.Border = &b
	}
	if t.Layout.Text.Background != nil {
		bg := *t.Layout.Text.Background
		c.Layout.Text.Background = &bg
	}
	return c
}
