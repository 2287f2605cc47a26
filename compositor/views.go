package compositor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/render"
	"github.com/opd-ai/storybook/templates"
)

// renderInterval is the coalescing window for interactive renders, roughly
// one frame at 60 Hz.
const renderInterval = 16 * time.Millisecond

// scheduler coalesces render requests: while one is pending, further
// requests are absorbed. Flush supersedes any pending request with an
// immediate run.
type scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	run      func()
	timer    *time.Timer
	pending  bool
	stopped  bool
}

func newScheduler(interval time.Duration, run func()) *scheduler {
	return &scheduler{interval: interval, run: run}
}

func (sc *scheduler) SetRun(run func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.run = run
}

// Request schedules a run after the coalescing window unless one is already
// pending.
func (sc *scheduler) Request() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.stopped || sc.pending {
		return
	}
	sc.pending = true
	sc.timer = time.AfterFunc(sc.interval, sc.fire)
}

func (sc *scheduler) fire() {
	sc.mu.Lock()
	if sc.stopped || !sc.pending {
		sc.mu.Unlock()
		return
	}
	sc.pending = false
	run := sc.run
	sc.mu.Unlock()
	if run != nil {
		run()
	}
}

// Flush cancels any pending run and runs immediately.
func (sc *scheduler) Flush() {
	sc.mu.Lock()
	if sc.stopped {
		sc.mu.Unlock()
		return
	}
	if sc.timer != nil {
		sc.timer.Stop()
	}
	sc.pending = false
	run := sc.run
	sc.mu.Unlock()
	if run != nil {
		run()
	}
}

// Pending reports whether a run is scheduled.
func (sc *scheduler) Pending() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.pending
}

func (sc *scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stopped = true
	sc.pending = false
	if sc.timer != nil {
		sc.timer.Stop()
	}
}

// SetRenderHook installs the host callback invoked when a coalesced render
// is due. The hook runs off the session lock and may call back into the
// session.
func (s *Session) SetRenderHook(fn func()) {
	s.sched.SetRun(fn)
}

// FlushRender runs any pending coalesced render immediately.
func (s *Session) FlushRender() {
	s.sched.Flush()
}

func (s *Session) requestRenderLocked() {
	s.sched.Request()
}

// renderInputs snapshots everything a page render needs so the actual
// rendering can run without the session lock.
func (s *Session) renderInputs(i int, overlay bool) (book.Page, templates.Template, render.Customizations, render.PageOverrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.book.Pages) {
		return book.Page{}, templates.Template{}, render.Customizations{}, render.PageOverrides{},
			fmt.Errorf("page index %d out of range [0,%d)", i, len(s.book.Pages))
	}
	ov := render.PageOverrides{
		Frame: s.frameLocked(i),
		Text:  s.textLocked(i),
		Crop:  s.cropLocked(i),
	}
	if overlay && i == s.selected && s.cropMode && s.element == ElementImage {
		ov.ShowCropOverlay = true
	}
	return s.book.Pages[i], s.registry.Get(s.templateID), s.customLocked(), ov, nil
}

// PageSceneAt renders page i with the session's current configuration.
func (s *Session) PageSceneAt(ctx context.Context, i int) (*render.Scene, error) {
	pg, tpl, custom, ov, err := s.renderInputs(i, true)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, pg, tpl, custom, ov)
}

// PageScene renders the selected page, including the crop overlay while
// crop mode is active.
func (s *Session) PageScene(ctx context.Context) (*render.Scene, error) {
	return s.PageSceneAt(ctx, s.SelectedPage())
}

// PageSVG renders the selected page as an SVG document.
func (s *Session) PageSVG(ctx context.Context) (string, error) {
	scene, err := s.PageScene(ctx)
	if err != nil {
		return "", err
	}
	return render.SVG(scene), nil
}

// SpreadScenes renders the spread containing the selected page: pages 2k
// and 2k+1. The right scene is nil when the book ends on the left page.
func (s *Session) SpreadScenes(ctx context.Context) (left, right *render.Scene, err error) {
	k := s.SelectedPage() / 2
	left, err = s.PageSceneAt(ctx, 2*k)
	if err != nil {
		return nil, nil, err
	}
	if 2*k+1 < s.PageCount() {
		right, err = s.PageSceneAt(ctx, 2*k+1)
		if err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}

// GridScenes renders every page for the grid view.
func (s *Session) GridScenes(ctx context.Context) ([]*render.Scene, error) {
	out := make([]*render.Scene, 0, s.PageCount())
	for i := 0; i < s.PageCount(); i++ {
		scene, err := s.PageSceneAt(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, scene)
	}
	return out, nil
}

// ListItem is a list-view row: a full page preview with a text excerpt.
type ListItem struct {
	Page    int
	Scene   *render.Scene
	Excerpt string
}

// ListItems renders every page with its excerpt for the list view.
func (s *Session) ListItems(ctx context.Context) ([]ListItem, error) {
	out := make([]ListItem, 0, s.PageCount())
	for i := 0; i < s.PageCount(); i++ {
		pg, tpl, custom, ov, err := s.renderInputs(i, false)
		if err != nil {
			return nil, err
		}
		scene, err := s.renderer.Render(ctx, pg, tpl, custom, ov)
		if err != nil {
			return nil, err
		}
		out = append(out, ListItem{Page: pg.Page, Scene: scene, Excerpt: render.Excerpt(pg.Text, 80)})
	}
	return out, nil
}

// Thumbnail is one strip entry: a single page, or a facing pair in spread
// view.
type Thumbnail struct {
	Pages  []int
	Scenes []*render.Scene
}

// Thumbnails renders the thumbnail strip for the current view mode. Grid
// view has no strip and returns nil.
func (s *Session) Thumbnails(ctx context.Context) ([]Thumbnail, error) {
	mode := s.ViewMode()
	if mode == ViewGrid {
		return nil, nil
	}
	n := s.PageCount()
	var out []Thumbnail
	if mode == ViewSpread {
		for i := 0; i < n; i += 2 {
			th := Thumbnail{Pages: []int{i}}
			scene, err := s.thumbScene(ctx, i)
			if err != nil {
				return nil, err
			}
			th.Scenes = []*render.Scene{scene}
			if i+1 < n {
				right, err := s.thumbScene(ctx, i+1)
				if err != nil {
					return nil, err
				}
				th.Pages = append(th.Pages, i+1)
				th.Scenes = append(th.Scenes, right)
			}
			out = append(out, th)
		}
		return out, nil
	}
	for i := 0; i < n; i++ {
		scene, err := s.thumbScene(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, Thumbnail{Pages: []int{i}, Scenes: []*render.Scene{scene}})
	}
	return out, nil
}

func (s *Session) thumbScene(ctx context.Context, i int) (*render.Scene, error) {
	pg, tpl, custom, ov, err := s.renderInputs(i, false)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, pg, tpl, custom, ov)
}
