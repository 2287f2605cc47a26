// Package compositor owns the interactive editing state of one book: the
// selected template, global customizations, per-page overrides, view and
// selection state, gestures, and the bounded undo/redo history. Scenes are
// produced on demand; the session never touches a display surface itself.
package compositor

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/imagecache"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

// ViewMode selects how pages are presented.
type ViewMode string

const (
	ViewSingle ViewMode = "single"
	ViewSpread ViewMode = "spread"
	ViewGrid   ViewMode = "grid"
	ViewList   ViewMode = "list"
)

// Element names what the user has selected on the page.
type Element string

const (
	ElementNone  Element = ""
	ElementImage Element = "image"
	ElementText  Element = "text"
)

const (
	maxUndoDepth = 50
	safeMargin   = 0.03

	MinGridZoom = 0.25
	MaxGridZoom = 2.0
)

// snapshot is the undoable state tuple. View and selection state are
// deliberately excluded.
type snapshot struct {
	TemplateID string                       `json:"templateId"`
	Custom     render.Customizations        `json:"customizations"`
	Frames     map[int]render.FrameSettings `json:"pageFrameSettings"`
	Texts      map[int]render.TextSettings  `json:"pageTextSettings"`
	Crops      map[int]render.CropSettings  `json:"pageCropSettings"`
}

// Session is one editing session over a book. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	book     *book.Book
	registry *templates.Registry
	images   *imagecache.Cache
	fonts    *templates.FontLoader
	renderer *render.Renderer

	templateID string
	custom     render.Customizations
	frames     map[int]render.FrameSettings
	texts      map[int]render.TextSettings
	crops      map[int]render.CropSettings

	showPageNumbers bool

	selected  int
	viewMode  ViewMode
	cropMode  bool
	abPattern bool
	element   Element

	gridZoom           float64
	gridPanX, gridPanY float64

	drag *dragState

	undo []snapshot
	redo []snapshot

	sched  *scheduler
	closed bool
}

// New opens a session at the given page size with the default template.
// The caller keeps ownership of bk; the session reads it but never writes.
func New(bk *book.Book, sizeID string) (*Session, error) {
	if err := bk.Validate(); err != nil {
		return nil, err
	}
	reg := templates.NewRegistry()
	images := imagecache.New()
	renderer, err := render.NewRenderer(reg, images, sizeID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		book:       bk,
		registry:   reg,
		images:     images,
		fonts:      templates.NewFontLoader(templates.DefaultFontServiceURL),
		renderer:   renderer,
		templateID: templates.DefaultTemplateID,

		frames: make(map[int]render.FrameSettings),
		texts:  make(map[int]render.TextSettings),
		crops:  make(map[int]render.CropSettings),

		showPageNumbers: true,
		viewMode:        ViewSingle,
		gridZoom:        1,
	}
	s.sched = newScheduler(renderInterval, func() {})
	return s, nil
}

// Registry exposes the session's template registry for listing UIs.
func (s *Session) Registry() *templates.Registry { return s.registry }

// Images exposes the session image cache, shared with exporters.
func (s *Session) Images() *imagecache.Cache { return s.images }

// Fonts exposes the session font loader, shared with exporters.
func (s *Session) Fonts() *templates.FontLoader { return s.fonts }

// Book returns the book being edited.
func (s *Session) Book() *book.Book { return s.book }

// PageCount returns the number of pages.
func (s *Session) PageCount() int { return len(s.book.Pages) }

// SizeID returns the page size the session renders at.
func (s *Session) SizeID() string { return s.renderer.Size.ID }

// Close flushes pending renders and drops the caches. The session must not
// be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.sched.Stop()
	s.images.Flush()
}

// --- selection and view state -------------------------------------------

// SelectPage moves the selection, clamped to the page range.
func (s *Session) SelectPage(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = clampInt(i, 0, len(s.book.Pages)-1)
}

// SelectedPage returns the selected page index.
func (s *Session) SelectedPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Next advances the selection: by one page in single and list view, by one
// spread in spread view.
func (s *Session) Next() { s.step(1) }

// Prev moves the selection backwards, mirroring Next.
func (s *Session) Prev() { s.step(-1) }

func (s *Session) step(dir int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stride := 1
	if s.viewMode == ViewSpread {
		stride = 2
	}
	s.selected = clampInt(s.selected+dir*stride, 0, len(s.book.Pages)-1)
}

// SetViewMode switches the presentation mode. Leaving crop mode is implied
// when the new mode cannot edit a single page.
func (s *Session) SetViewMode(m ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewMode = m
	if m == ViewGrid || m == ViewList {
		s.cropMode = false
		s.element = ElementNone
	}
}

// ViewMode returns the current presentation mode.
func (s *Session) ViewMode() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewMode
}

// SelectElement marks the image or text block as selected; ElementNone
// deselects and leaves crop mode.
func (s *Session) SelectElement(e Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.element = e
	if e != ElementImage {
		s.cropMode = false
	}
}

// SelectedElement returns the current selection.
func (s *Session) SelectedElement() Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.element
}

// SetCropMode toggles crop editing; it only applies to a selected image.
func (s *Session) SetCropMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && s.element != ElementImage {
		return
	}
	s.cropMode = on
}

// CropMode reports whether crop editing is active.
func (s *Session) CropMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropMode
}

// SetABPattern toggles parity mirroring. Disabling never reverts writes
// already mirrored.
func (s *Session) SetABPattern(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abPattern = on
}

// ABPattern reports whether parity mirroring is enabled.
func (s *Session) ABPattern() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abPattern
}

// SetGridZoom clamps and stores the grid zoom factor.
func (s *Session) SetGridZoom(z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gridZoom = clampFloat(z, MinGridZoom, MaxGridZoom)
}

// GridZoom returns the grid zoom factor.
func (s *Session) GridZoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gridZoom
}

// PanGrid shifts the grid viewport by the given page-point deltas.
func (s *Session) PanGrid(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gridPanX += dx
	s.gridPanY += dy
}

// GridPan returns the accumulated grid pan.
func (s *Session) GridPan() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gridPanX, s.gridPanY
}

// --- template and customizations ------------------------------------------

// TemplateID returns the active template id.
func (s *Session) TemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templateID
}

// SetTemplate switches templates. Frame and text overrides reset to identity
// on every page and the template-bound customizations are cleared; crop
// settings and the page-number flag survive the switch.
func (s *Session) SetTemplate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.templateID = id
	s.frames = make(map[int]render.FrameSettings)
	s.texts = make(map[int]render.TextSettings)
	s.custom = render.Customizations{}
	s.requestRenderLocked()
}

// Customizations returns a copy of the global customizations.
func (s *Session) Customizations() render.Customizations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customLocked()
}

func (s *Session) customLocked() render.Customizations {
	c := s.custom
	show := s.showPageNumbers
	c.ShowPageNumbers = &show
	return c
}

// SetFontFamily sets the global font family override.
func (s *Session) SetFontFamily(family string) {
	s.mutateCustom(func(c *render.Customizations) { c.FontFamily = family })
}

// SetFontSize sets the global base font size override in points.
func (s *Session) SetFontSize(size float64) {
	s.mutateCustom(func(c *render.Customizations) { c.FontSize = size })
}

// SetTheme sets the global color theme override.
func (s *Session) SetTheme(themeID string) {
	s.mutateCustom(func(c *render.Customizations) { c.ThemeID = themeID })
}

// SetFrameShape sets the global frame shape override.
func (s *Session) SetFrameShape(shape frames.Shape) {
	s.mutateCustom(func(c *render.Customizations) { c.FrameShape = shape })
}

// SetTextAlign sets the global text alignment override.
func (s *Session) SetTextAlign(align string) {
	s.mutateCustom(func(c *render.Customizations) { c.TextAlign = align })
}

// SetShowPageNumbers toggles page-number rendering.
func (s *Session) SetShowPageNumbers(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.showPageNumbers = show
	s.requestRenderLocked()
}

func (s *Session) mutateCustom(fn func(*render.Customizations)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	fn(&s.custom)
	s.requestRenderLocked()
}

// --- per-page overrides ----------------------------------------------------

// FrameSettings returns page i's frame settings, defaulted when untouched.
func (s *Session) FrameSettings(i int) render.FrameSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked(i)
}

// TextSettings returns page i's text settings, defaulted when untouched.
func (s *Session) TextSettings(i int) render.TextSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textLocked(i)
}

// CropSettings returns page i's crop settings, defaulted when untouched.
func (s *Session) CropSettings(i int) render.CropSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropLocked(i)
}

func (s *Session) frameLocked(i int) render.FrameSettings {
	if f, ok := s.frames[i]; ok {
		return f
	}
	return render.DefaultFrameSettings()
}

func (s *Session) textLocked(i int) render.TextSettings {
	if t, ok := s.texts[i]; ok {
		return t
	}
	return render.DefaultTextSettings()
}

func (s *Session) cropLocked(i int) render.CropSettings {
	if c, ok := s.crops[i]; ok {
		return c
	}
	return render.DefaultCropSettings()
}

// SetFrameSettings writes page i's frame settings, clamped, mirroring to
// same-parity pages when the A/B pattern is on.
func (s *Session) SetFrameSettings(i int, f render.FrameSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.writeFrameLocked(i, f)
	s.requestRenderLocked()
}

// SetTextSettings writes page i's text settings, clamped, mirroring to
// same-parity pages when the A/B pattern is on.
func (s *Session) SetTextSettings(i int, t render.TextSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.writeTextLocked(i, t)
	s.requestRenderLocked()
}

// SetCropSettings writes page i's crop settings, clamped. Crop settings are
// never mirrored by the A/B pattern.
func (s *Session) SetCropSettings(i int, c render.CropSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.crops[i] = c.Clamped()
	s.requestRenderLocked()
}

func (s *Session) writeFrameLocked(i int, f render.FrameSettings) {
	f = f.Clamped()
	s.frames[i] = f
	if s.abPattern {
		for j := range s.book.Pages {
			if j != i && j%2 == i%2 {
				s.frames[j] = f
			}
		}
	}
}

func (s *Session) writeTextLocked(i int, t render.TextSettings) {
	t = t.Clamped()
	s.texts[i] = t
	if s.abPattern {
		for j := range s.book.Pages {
			if j != i && j%2 == i%2 {
				s.texts[j] = t
			}
		}
	}
}

// ApplyToAll copies the selected page's settings for the element to every
// page: frame plus crop for the image, text settings for the text block.
func (s *Session) ApplyToAll(e Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	switch e {
	case ElementImage:
		f := s.frameLocked(s.selected)
		c := s.cropLocked(s.selected)
		for j := range s.book.Pages {
			s.frames[j] = f
			s.crops[j] = c
		}
	case ElementText:
		t := s.textLocked(s.selected)
		for j := range s.book.Pages {
			s.texts[j] = t
		}
	}
	s.requestRenderLocked()
}

// --- undo / redo -----------------------------------------------------------

func (s *Session) snapshotLocked() snapshot {
	return snapshot{
		TemplateID: s.templateID,
		Custom:     s.customLocked(),
		Frames:     copyMap(s.frames),
		Texts:      copyMap(s.texts),
		Crops:      copyMap(s.crops),
	}
}

func (s *Session) restoreLocked(snap snapshot) {
	s.templateID = snap.TemplateID
	s.custom = snap.Custom
	if snap.Custom.ShowPageNumbers != nil {
		s.showPageNumbers = *snap.Custom.ShowPageNumbers
	}
	s.custom.ShowPageNumbers = nil
	s.frames = copyMap(snap.Frames)
	s.texts = copyMap(snap.Texts)
	s.crops = copyMap(snap.Crops)
}

func (s *Session) pushUndoLocked() {
	s.pushUndoSnapshotLocked(s.snapshotLocked())
}

func (s *Session) pushUndoSnapshotLocked(snap snapshot) {
	s.undo = append(s.undo, snap)
	if len(s.undo) > maxUndoDepth {
		s.undo = s.undo[len(s.undo)-maxUndoDepth:]
	}
	s.redo = s.redo[:0]
}

// Undo restores the previous state tuple; it reports whether there was one.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return false
	}
	s.redo = append(s.redo, s.snapshotLocked())
	snap := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.restoreLocked(snap)
	s.requestRenderLocked()
	return true
}

// Redo reapplies the last undone state tuple.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return false
	}
	s.undo = append(s.undo, s.snapshotLocked())
	snap := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.restoreLocked(snap)
	s.requestRenderLocked()
	return true
}

// UndoDepth returns the number of states reachable via Undo.
func (s *Session) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

// --- handback and persistence ----------------------------------------------

// Handback returns what the host gets back when the user finishes editing:
// the book and the active template id.
func (s *Session) Handback() (*book.Book, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book, s.templateID
}

// Marshal serializes the persistable state tuple as JSON.
func (s *Session) Marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.snapshotLocked())
}

// Restore replaces the state tuple from a Marshal payload. The current
// state is pushed onto the undo stack first.
func (s *Session) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restoring session state: %w", err)
	}
	if snap.Frames == nil {
		snap.Frames = make(map[int]render.FrameSettings)
	}
	if snap.Texts == nil {
		snap.Texts = make(map[int]render.TextSettings)
	}
	if snap.Crops == nil {
		snap.Crops = make(map[int]render.CropSettings)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushUndoLocked()
	s.restoreLocked(snap)
	s.requestRenderLocked()
	return nil
}

func copyMap[V any](m map[int]V) map[int]V {
	out := make(map[int]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
