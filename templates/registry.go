package templates

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/storybook/frames"
)

// DefaultTemplateID is returned for unknown lookups.
const DefaultTemplateID = "classic-top"

// Registry is the closed set of template ids and color themes, grouped by
// category. Enumeration order is stable.
type Registry struct {
	order  []string
	byID   map[string]Template
	themes []ColorTheme
}

// NewRegistry builds a registry seeded with the built-in templates and
// themes.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Template)}
	for _, t := range builtinTemplates() {
		r.add(t)
	}
	r.themes = builtinThemes()
	return r
}

func (r *Registry) add(t Template) {
	if _, ok := r.byID[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t
}

// Templates enumerates every template in registration order.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// Get looks a template up by id, falling back to the canonical default on an
// unknown id.
func (r *Registry) Get(id string) Template {
	if t, ok := r.byID[id]; ok {
		return t.Clone()
	}
	return r.byID[DefaultTemplateID].Clone()
}

// Has reports whether id names a registered template.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Categories enumerates the distinct categories in first-seen order.
func (r *Registry) Categories() []string {
	var cats []string
	seen := make(map[string]bool)
	for _, id := range r.order {
		c := r.byID[id].Category
		if !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	return cats
}

// Clone deep-copies the template with the given id and applies overrides.
func (r *Registry) Clone(id string, override func(*Template)) Template {
	t := r.Get(id)
	if override != nil {
		override(&t)
	}
	return t
}

// Themes enumerates the color themes in stable order.
func (r *Registry) Themes() []ColorTheme {
	out := make([]ColorTheme, len(r.themes))
	copy(out, r.themes)
	return out
}

// Theme looks a theme up by id, falling back to the first theme on an
// unknown id.
func (r *Registry) Theme(id string) ColorTheme {
	for _, th := range r.themes {
		if th.ID == id {
			return th
		}
	}
	return r.themes[0]
}

// LoadYAML registers a template pack from YAML. Entries must carry an id and
// positive slot sizes; a bad entry aborts the whole load.
func (r *Registry) LoadYAML(data []byte) error {
	var pack struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parsing template pack: %w", err)
	}
	for i, t := range pack.Templates {
		if t.ID == "" {
			return fmt.Errorf("template %d: missing id", i)
		}
		if t.Layout.Image.W <= 0 || t.Layout.Image.H <= 0 ||
			t.Layout.Text.W <= 0 || t.Layout.Text.H <= 0 {
			return fmt.Errorf("template %q: non-positive slot size", t.ID)
		}
	}
	// Validated; commit.
	for _, t := range pack.Templates {
		if t.Type.FontSize <= 0 {
			t.Type.FontSize = 16
		}
		if t.Type.LineHeight <= 0 {
			t.Type.LineHeight = 1.4
		}
		r.add(t)
	}
	return nil
}

func builtinThemes() []ColorTheme {
	return []ColorTheme{
		{ID: "storytime", Name: "Storytime", Background: "#fffdf5", Text: "#3d3026", Accent: "#e8a64a", Secondary: "#9b8a74"},
		{ID: "ocean", Name: "Ocean", Background: "#eef7fb", Text: "#13384f", Accent: "#2a9dcc", Secondary: "#7fb5cc"},
		{ID: "meadow", Name: "Meadow", Background: "#f4fbef", Text: "#2c4423", Accent: "#6cab43", Secondary: "#a3c78e"},
		{ID: "sunset", Name: "Sunset", Background: "#fff4ee", Text: "#55281b", Accent: "#e96d47", Secondary: "#d8a18b"},
		{ID: "berry", Name: "Berry", Background: "#fbf0f6", Text: "#49203a", Accent: "#b64584", Secondary: "#c99ab6"},
		{ID: "midnight", Name: "Midnight", Background: "#1d2433", Text: "#e8ecf5", Accent: "#f3c657", Secondary: "#8b96ad"},
		{ID: "paper", Name: "Paper", Background: "#ffffff", Text: "#222222", Accent: "#666666", Secondary: "#aaaaaa"},
	}
}

func builtinTemplates() []Template {
	storytime := builtinThemes()[0]
	ocean := builtinThemes()[1]
	meadow := builtinThemes()[2]
	sunset := builtinThemes()[3]
	berry := builtinThemes()[4]
	midnight := builtinThemes()[5]

	return []Template{
		{
			ID: "classic-top", Name: "Classic Top", Category: "classic",
			Layout: Layout{
				Image: ImageSlot{X: 0.10, Y: 0.06, W: 0.80, H: 0.52, Shape: frames.Rounded, Padding: 0.01},
				Text:  TextSlot{X: 0.12, Y: 0.64, W: 0.76, H: 0.26, Align: "center", VAlign: "center"},
			},
			Type:   Typography{FontFamily: "Times", FontSize: 18, LineHeight: 1.5, FontWeight: "normal"},
			Colors: storytime,
		},
		{
			ID: "classic-bottom", Name: "Classic Bottom", Category: "classic",
			Layout: Layout{
				Image: ImageSlot{X: 0.10, Y: 0.40, W: 0.80, H: 0.52, Shape: frames.Rounded, Padding: 0.01},
				Text:  TextSlot{X: 0.12, Y: 0.08, W: 0.76, H: 0.26, Align: "center", VAlign: "center"},
			},
			Type:   Typography{FontFamily: "Times", FontSize: 18, LineHeight: 1.5, FontWeight: "normal"},
			Colors: storytime,
		},
		{
			ID: "classic-frame", Name: "Gallery Frame", Category: "classic",
			Layout: Layout{
				Image: ImageSlot{X: 0.14, Y: 0.10, W: 0.72, H: 0.50, Shape: frames.Rectangle, Border: &Border{Color: "#9b8a74", Width: 3}},
				Text:  TextSlot{X: 0.15, Y: 0.66, W: 0.70, H: 0.24, Align: "center", VAlign: "top"},
			},
			Type:    Typography{FontFamily: "Times", FontSize: 17, LineHeight: 1.5, FontWeight: "normal"},
			Colors:  storytime,
			Effects: Effects{DecorativeBorder: true},
		},
		{
			ID: "playful-circle", Name: "Bubble", Category: "playful",
			Layout: Layout{
				Image: ImageSlot{X: 0.18, Y: 0.05, W: 0.64, H: 0.56, Shape: frames.Circle},
				Text:  TextSlot{X: 0.10, Y: 0.66, W: 0.80, H: 0.26, Align: "center", VAlign: "center", Background: &TextBackground{Color: "#ffffff", Opacity: 0.85, Padding: 0.015, Radius: 12}},
			},
			Type:    Typography{FontFamily: "Baloo 2", FontSize: 19, LineHeight: 1.45, FontWeight: "bold"},
			Colors:  ocean,
			Effects: Effects{ImageShadow: true},
		},
		{
			ID: "playful-cloud", Name: "Daydream", Category: "playful",
			Layout: Layout{
				Image: ImageSlot{X: 0.08, Y: 0.06, W: 0.84, H: 0.54, Shape: frames.Cloud},
				Text:  TextSlot{X: 0.12, Y: 0.66, W: 0.76, H: 0.25, Align: "center", VAlign: "center"},
			},
			Type:   Typography{FontFamily: "Baloo 2", FontSize: 18, LineHeight: 1.5, FontWeight: "normal"},
			Colors: ocean,
		},
		{
			ID: "playful-star", Name: "Starburst", Category: "playful",
			Layout: Layout{
				Image: ImageSlot{X: 0.15, Y: 0.04, W: 0.70, H: 0.58, Shape: frames.Star},
				Text:  TextSlot{X: 0.10, Y: 0.68, W: 0.80, H: 0.24, Align: "center", VAlign: "center"},
			},
			Type:    Typography{FontFamily: "Baloo 2", FontSize: 18, LineHeight: 1.4, FontWeight: "bold"},
			Colors:  sunset,
			Effects: Effects{Glow: true},
		},
		{
			ID: "playful-heart", Name: "Sweetheart", Category: "playful",
			Layout: Layout{
				Image: ImageSlot{X: 0.16, Y: 0.05, W: 0.68, H: 0.56, Shape: frames.Heart},
				Text:  TextSlot{X: 0.12, Y: 0.66, W: 0.76, H: 0.25, Align: "center", VAlign: "center"},
			},
			Type:   Typography{FontFamily: "Baloo 2", FontSize: 18, LineHeight: 1.5, FontWeight: "normal"},
			Colors: berry,
		},
		{
			ID: "modern-split", Name: "Split", Category: "modern",
			Layout: Layout{
				Image: ImageSlot{X: 0.00, Y: 0.00, W: 0.55, H: 1.00, Shape: frames.Rectangle},
				Text:  TextSlot{X: 0.60, Y: 0.20, W: 0.34, H: 0.60, Align: "left", VAlign: "center"},
			},
			Type:   Typography{FontFamily: "Helvetica", FontSize: 17, LineHeight: 1.6, FontWeight: "normal"},
			Colors: ColorTheme{Background: "#f7f7f4", Text: "#262626", Accent: "#d04f2e", Secondary: "#8f8f8a"},
		},
		{
			ID: "modern-full", Name: "Full Bleed", Category: "modern",
			Layout: Layout{
				Image: ImageSlot{X: 0.00, Y: 0.00, W: 1.00, H: 1.00, Shape: frames.Rectangle},
				Text:  TextSlot{X: 0.10, Y: 0.74, W: 0.80, H: 0.18, Align: "center", VAlign: "center", Background: &TextBackground{Color: "#000000", Opacity: 0.45, Padding: 0.015, Radius: 8}},
			},
			Type:    Typography{FontFamily: "Helvetica", FontSize: 18, LineHeight: 1.45, FontWeight: "bold"},
			Colors:  ColorTheme{Background: "#101010", Text: "#ffffff", Accent: "#ffd166", Secondary: "#bbbbbb"},
			Effects: Effects{TextShadow: true},
		},
		{
			ID: "modern-hex", Name: "Honeycomb", Category: "modern",
			Layout: Layout{
				Image: ImageSlot{X: 0.20, Y: 0.06, W: 0.60, H: 0.56, Shape: frames.Hexagon},
				Text:  TextSlot{X: 0.14, Y: 0.68, W: 0.72, H: 0.24, Align: "center", VAlign: "top"},
			},
			Type:   Typography{FontFamily: "Helvetica", FontSize: 16, LineHeight: 1.5, FontWeight: "normal"},
			Colors: meadow,
		},
		{
			ID: "special-arch", Name: "Storybook Arch", Category: "special",
			Layout: Layout{
				Image: ImageSlot{X: 0.14, Y: 0.05, W: 0.72, H: 0.58, Shape: frames.Arch, Border: &Border{Color: "#e8a64a", Width: 2}},
				Text:  TextSlot{X: 0.14, Y: 0.68, W: 0.72, H: 0.24, Align: "center", VAlign: "center"},
			},
			Type:    Typography{FontFamily: "Quicksand", FontSize: 17, LineHeight: 1.55, FontWeight: "normal"},
			Colors:  storytime,
			Effects: Effects{PageShadow: true, DecorativeBorder: true},
		},
		{
			ID: "special-blob", Name: "Puddle", Category: "special",
			Layout: Layout{
				Image: ImageSlot{X: 0.10, Y: 0.06, W: 0.80, H: 0.55, Shape: frames.Blob},
				Text:  TextSlot{X: 0.12, Y: 0.66, W: 0.76, H: 0.26, Align: "center", VAlign: "center"},
			},
			Type:    Typography{FontFamily: "Quicksand", FontSize: 18, LineHeight: 1.5, FontWeight: "normal"},
			Colors:  meadow,
			Effects: Effects{ImageShadow: true},
		},
		{
			ID: "special-scallop", Name: "Keepsake", Category: "special",
			Layout: Layout{
				Image: ImageSlot{X: 0.12, Y: 0.07, W: 0.76, H: 0.54, Shape: frames.Scallop},
				Text:  TextSlot{X: 0.14, Y: 0.67, W: 0.72, H: 0.25, Align: "center", VAlign: "center"},
			},
			Type:    Typography{FontFamily: "Quicksand", FontSize: 17, LineHeight: 1.55, FontWeight: "normal"},
			Colors:  midnight,
			Effects: Effects{DecorativeBorder: true, TextShadow: true},
		},
	}
}
