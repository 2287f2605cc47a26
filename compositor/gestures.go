package compositor

import "github.com/opd-ai/storybook/render"

// Handle names the part of the selection overlay a pointer grabbed.
type Handle string

const (
	HandleBody Handle = "body"
	HandleNW   Handle = "nw"
	HandleNE   Handle = "ne"
	HandleSW   Handle = "sw"
	HandleSE   Handle = "se"
)

// SnapPosition names one of the six deterministic snap targets.
type SnapPosition string

const (
	SnapLeft    SnapPosition = "left"
	SnapRight   SnapPosition = "right"
	SnapTop     SnapPosition = "top"
	SnapBottom  SnapPosition = "bottom"
	SnapCenterX SnapPosition = "centerX"
	SnapCenterY SnapPosition = "centerY"
)

// legSensitivity converts a corner-handle pointer travel (dx+dy, in page
// points) into a scale or zoom delta.
const legSensitivity = 400.0

// dragState holds the committed state a drag started from. Motion always
// recomputes from the base, so jittery input cannot accumulate error, and a
// canceled drag falls back to it.
type dragState struct {
	element Element
	handle  Handle
	page    int
	startX  float64
	startY  float64

	preDrag   snapshot
	baseFrame render.FrameSettings
	baseText  render.TextSettings
	baseCrop  render.CropSettings
	crop      bool
	moved     bool
}

// PointerDown begins a drag on the given element at page-point coordinates.
func (s *Session) PointerDown(x, y float64, e Element, h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e == ElementNone {
		s.element = ElementNone
		s.cropMode = false
		s.drag = nil
		return
	}
	s.element = e
	s.drag = &dragState{
		element:   e,
		handle:    h,
		page:      s.selected,
		startX:    x,
		startY:    y,
		preDrag:   s.snapshotLocked(),
		baseFrame: s.frameLocked(s.selected),
		baseText:  s.textLocked(s.selected),
		baseCrop:  s.cropLocked(s.selected),
		crop:      s.cropMode && e == ElementImage,
	}
}

// PointerMove updates the live overrides from the drag's base state and
// schedules a coalesced render.
func (s *Session) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.drag
	if d == nil {
		return
	}
	dx := x - d.startX
	dy := y - d.startY
	if dx == 0 && dy == 0 {
		return
	}
	d.moved = true
	w := s.renderer.Size.W
	h := s.renderer.Size.H

	switch {
	case d.crop && d.handle == HandleBody:
		c := d.baseCrop
		c.X = d.baseCrop.X - dx/w
		c.Y = d.baseCrop.Y - dy/h
		s.crops[d.page] = c.Clamped()
	case d.crop:
		c := d.baseCrop
		c.Zoom = d.baseCrop.Zoom + (dx+dy)/legSensitivity
		s.crops[d.page] = c.Clamped()
	case d.element == ElementImage && d.handle == HandleBody:
		f := d.baseFrame
		f.OffsetX += dx / w
		f.OffsetY += dy / h
		s.writeFrameLocked(d.page, f)
	case d.element == ElementImage:
		f := d.baseFrame
		f.Scale += (dx + dy) / legSensitivity
		s.writeFrameLocked(d.page, f)
	case d.handle == HandleBody:
		t := d.baseText
		t.OffsetX += dx / w
		t.OffsetY += dy / h
		s.writeTextLocked(d.page, t)
	default:
		t := d.baseText
		t.Scale += (dx + dy) / legSensitivity
		s.writeTextLocked(d.page, t)
	}
	s.requestRenderLocked()
}

// PointerUp commits the drag: the pre-drag state becomes one undo step and
// any throttled render is flushed.
func (s *Session) PointerUp(x, y float64) {
	s.mu.Lock()
	d := s.drag
	s.drag = nil
	if d == nil {
		s.mu.Unlock()
		return
	}
	if d.moved {
		s.pushUndoSnapshotLocked(d.preDrag)
	}
	s.mu.Unlock()
	s.sched.Flush()
}

// PointerCancel abandons the drag and falls back to the committed state.
func (s *Session) PointerCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.drag
	s.drag = nil
	if d == nil || !d.moved {
		return
	}
	s.restoreLocked(d.preDrag)
	s.requestRenderLocked()
}

// Snap repositions the selected element against the 3% safe margins or the
// page center by writing offsets directly. The target is computed from the
// element's base slot and its current scale.
func (s *Session) Snap(pos SnapPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.element == ElementNone {
		return
	}
	tpl := s.registry.Get(s.templateID)
	s.pushUndoLocked()

	if s.element == ElementImage {
		slot := tpl.Layout.Image
		f := s.frameLocked(s.selected)
		ox, oy := snapOffsets(pos, render.Region{X: slot.X, Y: slot.Y, W: slot.W, H: slot.H}, f.Scale, f.OffsetX, f.OffsetY)
		f.OffsetX, f.OffsetY = ox, oy
		s.writeFrameLocked(s.selected, f)
	} else {
		slot := tpl.Layout.Text
		t := s.textLocked(s.selected)
		ox, oy := snapOffsets(pos, render.Region{X: slot.X, Y: slot.Y, W: slot.W, H: slot.H}, t.Scale, t.OffsetX, t.OffsetY)
		t.OffsetX, t.OffsetY = ox, oy
		s.writeTextLocked(s.selected, t)
	}
	s.requestRenderLocked()
}

// snapOffsets solves for the offsets that place the scaled slot at the snap
// target, leaving the unaffected axis alone.
func snapOffsets(pos SnapPosition, base render.Region, scale, offX, offY float64) (float64, float64) {
	w := base.W * scale
	h := base.H * scale
	x0 := base.X + (base.W-w)/2
	y0 := base.Y + (base.H-h)/2

	switch pos {
	case SnapLeft:
		offX = safeMargin - x0
	case SnapRight:
		offX = 1 - safeMargin - w - x0
	case SnapCenterX:
		offX = (1-w)/2 - x0
	case SnapTop:
		offY = safeMargin - y0
	case SnapBottom:
		offY = 1 - safeMargin - h - y0
	case SnapCenterY:
		offY = (1-h)/2 - y0
	}
	return offX, offY
}
