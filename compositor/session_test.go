package compositor

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/render"
)

func testBook(n int) *book.Book {
	bk := &book.Book{Title: "Test Book", Author: "A. Writer"}
	for i := 1; i <= n; i++ {
		bk.Pages = append(bk.Pages, book.Page{Page: i, Text: "Some story text for the page."})
	}
	return bk
}

func testSession(t *testing.T, pages int) *Session {
	t.Helper()
	s, err := New(testBook(pages), render.DefaultSizeID)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestWritesAreClamped(t *testing.T) {
	s := testSession(t, 4)

	s.SetFrameSettings(0, render.FrameSettings{Scale: 99})
	if got := s.FrameSettings(0).Scale; got != render.MaxFrameScale {
		t.Errorf("frame scale = %v, want %v", got, render.MaxFrameScale)
	}
	s.SetTextSettings(0, render.TextSettings{Scale: 0.1})
	if got := s.TextSettings(0).Scale; got != render.MinTextScale {
		t.Errorf("text scale = %v, want %v", got, render.MinTextScale)
	}
	s.SetCropSettings(0, render.CropSettings{Zoom: 5, X: -1, Y: 2})
	c := s.CropSettings(0)
	if c.Zoom != render.MaxCropZoom || c.X != 0 || c.Y != 1 {
		t.Errorf("crop = %+v, want zoom %v, x 0, y 1", c, render.MaxCropZoom)
	}

	s.SetGridZoom(9)
	if s.GridZoom() != MaxGridZoom {
		t.Errorf("grid zoom = %v, want %v", s.GridZoom(), MaxGridZoom)
	}
}

func TestCropPanClampsAtZero(t *testing.T) {
	s := testSession(t, 4)
	s.SelectElement(ElementImage)
	s.SetCropMode(true)

	// drag far enough right that cropX would reach -0.3
	w := 612.0
	s.PointerDown(100, 100, ElementImage, HandleBody)
	s.PointerMove(100+0.8*w, 100)
	s.PointerUp(100+0.8*w, 100)

	if got := s.CropSettings(0).X; got != 0 {
		t.Errorf("cropX = %v, want 0", got)
	}
}

func TestABPropagation(t *testing.T) {
	s := testSession(t, 8)
	s.SetABPattern(true)

	s.SetTextSettings(3, render.TextSettings{Scale: 1.5})
	for _, j := range []int{1, 5, 7} {
		if got := s.TextSettings(j).Scale; got != 1.5 {
			t.Errorf("page %d text scale = %v, want 1.5", j, got)
		}
	}
	for _, j := range []int{0, 2, 4, 6} {
		if got := s.TextSettings(j).Scale; got != 1 {
			t.Errorf("page %d text scale = %v, want untouched 1", j, got)
		}
	}

	s.SetABPattern(false)
	s.SetTextSettings(3, render.TextSettings{Scale: 0.8})
	for _, j := range []int{1, 5, 7} {
		if got := s.TextSettings(j).Scale; got != 1.5 {
			t.Errorf("page %d text scale = %v after disabling, want 1.5", j, got)
		}
	}
}

func TestCropNeverMirrored(t *testing.T) {
	s := testSession(t, 4)
	s.SetABPattern(true)
	s.SetCropSettings(0, render.CropSettings{Zoom: 2, X: 0.3, Y: 0.7})
	if got := s.CropSettings(2); got != render.DefaultCropSettings() {
		t.Errorf("page 2 crop = %+v, want default", got)
	}
}

func TestTemplateResetPreservesCrop(t *testing.T) {
	s := testSession(t, 4)
	want := render.CropSettings{Zoom: 2, X: 0.3, Y: 0.7}
	s.SetCropSettings(0, want)
	s.SetFrameSettings(0, render.FrameSettings{Scale: 0.7})
	s.SetFontFamily("Lora")
	s.SetShowPageNumbers(false)

	s.SetTemplate("playful-circle")

	if got := s.CropSettings(0); got != want {
		t.Errorf("crop after template switch = %+v, want %+v", got, want)
	}
	if got := s.FrameSettings(0).Scale; got != 1 {
		t.Errorf("frame scale after template switch = %v, want identity 1", got)
	}
	c := s.Customizations()
	if c.FontFamily != "" {
		t.Errorf("font family survived template switch: %q", c.FontFamily)
	}
	if c.ShowPageNumbers == nil || *c.ShowPageNumbers {
		t.Error("page-number flag did not survive template switch")
	}
	if s.TemplateID() != "playful-circle" {
		t.Errorf("template id = %q", s.TemplateID())
	}
}

func TestUndoDepthBound(t *testing.T) {
	s := testSession(t, 4)
	for i := 1; i <= 60; i++ {
		s.SetFontSize(float64(i))
	}
	if got := s.UndoDepth(); got != 50 {
		t.Fatalf("undo depth = %d, want 50", got)
	}
	n := 0
	for s.Undo() {
		n++
	}
	if n != 50 {
		t.Errorf("undo ran %d times, want 50", n)
	}
	// the 10 earliest mutations are unreachable
	if got := s.Customizations().FontSize; got != 10 {
		t.Errorf("font size after exhausting undo = %v, want 10", got)
	}
}

func TestUndoRedoIdentity(t *testing.T) {
	s := testSession(t, 4)
	s.SetFrameSettings(1, render.FrameSettings{Scale: 0.8, OffsetX: 0.05, OffsetY: -0.02})
	s.SetTheme("ocean")

	before, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !s.Undo() {
		t.Fatal("Undo returned false")
	}
	if !s.Redo() {
		t.Fatal("Redo returned false")
	}
	after, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("undo+redo is not the identity:\n before %s\n after  %s", before, after)
	}
}

func TestMutationClearsRedo(t *testing.T) {
	s := testSession(t, 4)
	s.SetFontSize(20)
	s.Undo()
	s.SetFontSize(24)
	if s.Redo() {
		t.Error("redo survived a fresh mutation")
	}
}

func TestDragCommitsAsOneUndoStep(t *testing.T) {
	s := testSession(t, 4)
	s.PointerDown(100, 100, ElementImage, HandleBody)
	for i := 1; i <= 10; i++ {
		s.PointerMove(100+float64(i)*6.12, 100)
	}
	s.PointerUp(161.2, 100)

	if got := s.FrameSettings(0).OffsetX; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("offsetX = %v, want 0.1", got)
	}
	if got := s.UndoDepth(); got != 1 {
		t.Errorf("undo depth = %d, want one step for the whole drag", got)
	}
	s.Undo()
	if got := s.FrameSettings(0).OffsetX; got != 0 {
		t.Errorf("offsetX after undo = %v, want 0", got)
	}
}

func TestCornerDragScales(t *testing.T) {
	s := testSession(t, 4)
	s.PointerDown(200, 200, ElementImage, HandleSE)
	s.PointerMove(300, 300) // (100+100)/400 = +0.5
	s.PointerUp(300, 300)
	if got := s.FrameSettings(0).Scale; math.Abs(got-1.5) > 1e-9 {
		t.Errorf("scale = %v, want 1.5", got)
	}

	s.SelectElement(ElementImage)
	s.SetCropMode(true)
	s.PointerDown(200, 200, ElementImage, HandleSE)
	s.PointerMove(400, 400) // zoom 1 + 1.0 = 2
	s.PointerUp(400, 400)
	if got := s.CropSettings(0).Zoom; math.Abs(got-2) > 1e-9 {
		t.Errorf("crop zoom = %v, want 2", got)
	}
}

func TestPointerCancelFallsBack(t *testing.T) {
	s := testSession(t, 4)
	s.PointerDown(100, 100, ElementText, HandleBody)
	s.PointerMove(200, 150)
	s.PointerCancel()

	if got := s.TextSettings(0); got != render.DefaultTextSettings() {
		t.Errorf("text settings after cancel = %+v, want default", got)
	}
	if got := s.UndoDepth(); got != 0 {
		t.Errorf("undo depth after canceled drag = %d, want 0", got)
	}
}

func TestSnapOffsets(t *testing.T) {
	base := render.Region{X: 0.1, Y: 0.1, W: 0.8, H: 0.5}
	tests := []struct {
		pos  SnapPosition
		axis string
		want float64
	}{
		{SnapLeft, "x", safeMargin - 0.1},
		{SnapRight, "x", 1 - safeMargin - 0.8 - 0.1},
		{SnapCenterX, "x", 0},
		{SnapTop, "y", safeMargin - 0.1},
		{SnapBottom, "y", 1 - safeMargin - 0.5 - 0.1},
		{SnapCenterY, "y", (1-0.5)/2 - 0.1},
	}
	for _, tt := range tests {
		ox, oy := snapOffsets(tt.pos, base, 1, 0, 0)
		got, other := ox, oy
		if tt.axis == "y" {
			got, other = oy, ox
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: offset = %v, want %v", tt.pos, got, tt.want)
		}
		if other != 0 {
			t.Errorf("%s moved the other axis", tt.pos)
		}
	}
}

func TestSnapPlacesRegionAtMargin(t *testing.T) {
	s := testSession(t, 4)
	s.SelectElement(ElementImage)
	s.Snap(SnapLeft)

	pg, tpl, custom, ov, err := s.renderInputs(0, false)
	if err != nil {
		t.Fatalf("renderInputs: %v", err)
	}
	_ = pg
	eff, err := render.BuildEffective(s.Registry(), tpl, custom, ov)
	if err != nil {
		t.Fatalf("BuildEffective: %v", err)
	}
	if math.Abs(eff.ImageRegion.X-safeMargin) > 1e-9 {
		t.Errorf("image region X = %v, want %v", eff.ImageRegion.X, safeMargin)
	}
}

func TestSchedulerCoalesces(t *testing.T) {
	var runs atomic.Int32
	sc := newScheduler(20*time.Millisecond, func() { runs.Add(1) })
	for i := 0; i < 10; i++ {
		sc.Request()
	}
	if !sc.Pending() {
		t.Fatal("no pending run after requests")
	}
	time.Sleep(60 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("coalesced runs = %d, want 1", got)
	}

	sc.Request()
	sc.Flush()
	if got := runs.Load(); got != 2 {
		t.Errorf("runs after flush = %d, want 2", got)
	}
	time.Sleep(40 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("flushed request fired again: runs = %d", got)
	}

	sc.Stop()
	sc.Request()
	time.Sleep(40 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("stopped scheduler still ran: %d", got)
	}
}

func TestNavigationStride(t *testing.T) {
	s := testSession(t, 6)
	s.Next()
	if s.SelectedPage() != 1 {
		t.Errorf("single next = %d, want 1", s.SelectedPage())
	}
	s.SetViewMode(ViewSpread)
	s.Next()
	if s.SelectedPage() != 3 {
		t.Errorf("spread next = %d, want 3", s.SelectedPage())
	}
	s.SelectPage(99)
	if s.SelectedPage() != 5 {
		t.Errorf("selection not clamped: %d", s.SelectedPage())
	}
}

func TestSceneProducers(t *testing.T) {
	ctx := context.Background()
	s := testSession(t, 5)

	scene, err := s.PageScene(ctx)
	if err != nil {
		t.Fatalf("PageScene: %v", err)
	}
	if scene.W != 612 || scene.H != 612 {
		t.Errorf("scene size = %vx%v, want 612x612", scene.W, scene.H)
	}

	s.SelectPage(4)
	left, right, err := s.SpreadScenes(ctx)
	if err != nil {
		t.Fatalf("SpreadScenes: %v", err)
	}
	if left == nil || right != nil {
		t.Error("spread at the last odd page should have no right scene")
	}

	grid, err := s.GridScenes(ctx)
	if err != nil {
		t.Fatalf("GridScenes: %v", err)
	}
	if len(grid) != 5 {
		t.Errorf("grid scenes = %d, want 5", len(grid))
	}

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 5 || items[0].Excerpt == "" {
		t.Errorf("list items = %d with excerpt %q", len(items), items[0].Excerpt)
	}

	s.SetViewMode(ViewSpread)
	thumbs, err := s.Thumbnails(ctx)
	if err != nil {
		t.Fatalf("Thumbnails: %v", err)
	}
	if len(thumbs) != 3 {
		t.Errorf("spread thumbnails = %d, want 3 pairs", len(thumbs))
	}
	if len(thumbs[0].Pages) != 2 || len(thumbs[2].Pages) != 1 {
		t.Errorf("thumbnail pairing wrong: %v / %v", thumbs[0].Pages, thumbs[2].Pages)
	}

	s.SetViewMode(ViewGrid)
	thumbs, err = s.Thumbnails(ctx)
	if err != nil || thumbs != nil {
		t.Errorf("grid thumbnails = %v (err %v), want none", thumbs, err)
	}

	if _, err := s.PageSceneAt(ctx, 42); err == nil {
		t.Error("out-of-range page index did not error")
	}
}

func TestHandback(t *testing.T) {
	s := testSession(t, 3)
	s.SetTemplate("modern-split")
	bk, id := s.Handback()
	if bk.Title != "Test Book" || id != "modern-split" {
		t.Errorf("handback = %q / %q", bk.Title, id)
	}
}

func TestMarshalRestoreRoundTrip(t *testing.T) {
	s := testSession(t, 4)
	s.SetTemplate("special-arch")
	s.SetTheme("sunset")
	s.SetFrameSettings(2, render.FrameSettings{Scale: 0.9, OffsetX: 0.01})
	s.SetCropSettings(1, render.CropSettings{Zoom: 1.4, X: 0.2, Y: 0.8})

	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	fresh := testSession(t, 4)
	if err := fresh.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if fresh.TemplateID() != "special-arch" {
		t.Errorf("template id = %q", fresh.TemplateID())
	}
	if got := fresh.Customizations().ThemeID; got != "sunset" {
		t.Errorf("theme = %q", got)
	}
	if got := fresh.FrameSettings(2); got != (render.FrameSettings{Scale: 0.9, OffsetX: 0.01}) {
		t.Errorf("frame settings = %+v", got)
	}
	if got := fresh.CropSettings(1); got != (render.CropSettings{Zoom: 1.4, X: 0.2, Y: 0.8}) {
		t.Errorf("crop settings = %+v", got)
	}

	if err := fresh.Restore([]byte("{nope")); err == nil {
		t.Error("malformed payload did not error")
	}
}

func TestApplyToAll(t *testing.T) {
	s := testSession(t, 5)
	s.SelectPage(2)
	s.SetFrameSettings(2, render.FrameSettings{Scale: 0.7, OffsetX: 0.02})
	s.SetCropSettings(2, render.CropSettings{Zoom: 2, X: 0.1, Y: 0.9})

	s.ApplyToAll(ElementImage)
	for i := 0; i < 5; i++ {
		if got := s.FrameSettings(i).Scale; got != 0.7 {
			t.Errorf("page %d frame scale = %v, want 0.7", i, got)
		}
		if got := s.CropSettings(i).Zoom; got != 2 {
			t.Errorf("page %d crop zoom = %v, want 2", i, got)
		}
	}
	if got := s.TextSettings(0); got != render.DefaultTextSettings() {
		t.Errorf("apply-to-all image touched text settings: %+v", got)
	}
}
