package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opd-ai/storybook/book"
	"github.com/opd-ai/storybook/compositor"
	"github.com/opd-ai/storybook/export"
	"github.com/opd-ai/storybook/frames"
	"github.com/opd-ai/storybook/render"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var inputErr *render.InputError
	if errors.As(err, &inputErr) {
		http.Error(w, inputErr.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (ui *CompositorUI) sessionOr404(w http.ResponseWriter, r *http.Request) *sessionEntry {
	id := chi.URLParam(r, "sessionID")
	entry, ok := ui.entry(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil
	}
	return entry
}

func (ui *CompositorUI) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	bk, err := book.Load(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sizeID := r.URL.Query().Get("size")
	if sizeID == "" {
		sizeID = render.DefaultSizeID
	}
	sess, err := compositor.New(bk, sizeID)
	if err != nil {
		writeError(w, err)
		return
	}

	id := uuid.New().String()
	ui.sessionsM.Lock()
	ui.sessions[id] = &sessionEntry{
		session:  sess,
		exporter: export.New(sess.Registry(), sess.Images(), sess.Fonts()),
	}
	ui.sessionsM.Unlock()
	ui.touch(id)

	slog.Info("session created", "session", id, "pages", sess.PageCount(), "size", sizeID)
	w.Header().Set("X-Session-Id", id)
	writeJSON(w, map[string]any{
		"sessionId":  id,
		"templateId": sess.TemplateID(),
		"pageCount":  sess.PageCount(),
	})
}

// --- previews ---------------------------------------------------------------

func (ui *CompositorUI) handlePageSVG(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	if p := r.URL.Query().Get("page"); p != "" {
		i, err := strconv.Atoi(p)
		if err != nil {
			http.Error(w, "bad page index", http.StatusBadRequest)
			return
		}
		entry.session.SelectPage(i)
	}
	svg, err := entry.session.PageSVG(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	io.WriteString(w, svg)
}

func (ui *CompositorUI) handleSpreadSVG(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	left, right, err := entry.session.SpreadScenes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"left": render.SVG(left)}
	if right != nil {
		resp["right"] = render.SVG(right)
	}
	writeJSON(w, resp)
}

func (ui *CompositorUI) handleGridSVG(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	scenes, err := entry.session.GridScenes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	pages := make([]string, len(scenes))
	for i, sc := range scenes {
		pages[i] = render.SVG(sc)
	}
	panX, panY := entry.session.GridPan()
	writeJSON(w, map[string]any{
		"pages": pages,
		"zoom":  entry.session.GridZoom(),
		"panX":  panX,
		"panY":  panY,
	})
}

func (ui *CompositorUI) handleListItems(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	items, err := entry.session.ListItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type row struct {
		Page    int    `json:"page"`
		Excerpt string `json:"excerpt"`
		SVG     string `json:"svg"`
	}
	rows := make([]row, len(items))
	for i, it := range items {
		rows[i] = row{Page: it.Page, Excerpt: it.Excerpt, SVG: render.SVG(it.Scene)}
	}
	writeJSON(w, rows)
}

func (ui *CompositorUI) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	thumbs, err := entry.session.Thumbnails(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type strip struct {
		Pages []int    `json:"pages"`
		SVGs  []string `json:"svgs"`
	}
	out := make([]strip, len(thumbs))
	for i, th := range thumbs {
		svgs := make([]string, len(th.Scenes))
		for j, sc := range th.Scenes {
			svgs[j] = render.SVG(sc)
		}
		out[i] = strip{Pages: th.Pages, SVGs: svgs}
	}
	writeJSON(w, out)
}

// --- mutations ---------------------------------------------------------------

func (ui *CompositorUI) handleSetTemplate(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	var req struct {
		TemplateID string `json:"templateId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		http.Error(w, "templateId is required", http.StatusBadRequest)
		return
	}
	entry.session.SetTemplate(req.TemplateID)
	writeJSON(w, map[string]string{"templateId": entry.session.TemplateID()})
}

func (ui *CompositorUI) handleCustomizations(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	var req struct {
		FontFamily      *string  `json:"fontFamily"`
		FontSize        *float64 `json:"fontSize"`
		ThemeID         *string  `json:"themeId"`
		FrameShape      *string  `json:"frameShape"`
		TextAlign       *string  `json:"textAlign"`
		ShowPageNumbers *bool    `json:"showPageNumbers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad customization payload", http.StatusBadRequest)
		return
	}
	s := entry.session
	if req.FontFamily != nil {
		s.SetFontFamily(*req.FontFamily)
	}
	if req.FontSize != nil {
		s.SetFontSize(*req.FontSize)
	}
	if req.ThemeID != nil {
		s.SetTheme(*req.ThemeID)
	}
	if req.FrameShape != nil {
		s.SetFrameShape(frames.Shape(*req.FrameShape))
	}
	if req.TextAlign != nil {
		s.SetTextAlign(*req.TextAlign)
	}
	if req.ShowPageNumbers != nil {
		s.SetShowPageNumbers(*req.ShowPageNumbers)
	}
	writeJSON(w, s.Customizations())
}

func (ui *CompositorUI) handleViewState(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	var req struct {
		Mode      *string  `json:"mode"`
		Page      *int     `json:"page"`
		Element   *string  `json:"element"`
		CropMode  *bool    `json:"cropMode"`
		ABPattern *bool    `json:"abPattern"`
		GridZoom  *float64 `json:"gridZoom"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad view payload", http.StatusBadRequest)
		return
	}
	s := entry.session
	if req.Mode != nil {
		s.SetViewMode(compositor.ViewMode(*req.Mode))
	}
	if req.Page != nil {
		s.SelectPage(*req.Page)
	}
	if req.Element != nil {
		s.SelectElement(compositor.Element(*req.Element))
	}
	if req.CropMode != nil {
		s.SetCropMode(*req.CropMode)
	}
	if req.ABPattern != nil {
		s.SetABPattern(*req.ABPattern)
	}
	if req.GridZoom != nil {
		s.SetGridZoom(*req.GridZoom)
	}
	writeJSON(w, map[string]any{
		"mode":     s.ViewMode(),
		"page":     s.SelectedPage(),
		"element":  s.SelectedElement(),
		"cropMode": s.CropMode(),
	})
}

func (ui *CompositorUI) handleSnap(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	var req struct {
		Position string `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == "" {
		http.Error(w, "position is required", http.StatusBadRequest)
		return
	}
	entry.session.Snap(compositor.SnapPosition(req.Position))
	w.WriteHeader(http.StatusNoContent)
}

func (ui *CompositorUI) handleApplyToAll(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	var req struct {
		Element string `json:"element"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Element == "" {
		http.Error(w, "element is required", http.StatusBadRequest)
		return
	}
	entry.session.ApplyToAll(compositor.Element(req.Element))
	w.WriteHeader(http.StatusNoContent)
}

func pageIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || i < 0 {
		http.Error(w, "bad page index", http.StatusBadRequest)
		return 0, false
	}
	return i, true
}

func (ui *CompositorUI) handleSetFrame(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	i, ok := pageIndex(w, r)
	if !ok {
		return
	}
	var fs render.FrameSettings
	if err := json.NewDecoder(r.Body).Decode(&fs); err != nil {
		http.Error(w, "bad frame settings", http.StatusBadRequest)
		return
	}
	entry.session.SetFrameSettings(i, fs)
	writeJSON(w, entry.session.FrameSettings(i))
}

func (ui *CompositorUI) handleSetText(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	i, ok := pageIndex(w, r)
	if !ok {
		return
	}
	var ts render.TextSettings
	if err := json.NewDecoder(r.Body).Decode(&ts); err != nil {
		http.Error(w, "bad text settings", http.StatusBadRequest)
		return
	}
	entry.session.SetTextSettings(i, ts)
	writeJSON(w, entry.session.TextSettings(i))
}

func (ui *CompositorUI) handleSetCrop(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	i, ok := pageIndex(w, r)
	if !ok {
		return
	}
	var cs render.CropSettings
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		http.Error(w, "bad crop settings", http.StatusBadRequest)
		return
	}
	entry.session.SetCropSettings(i, cs)
	writeJSON(w, entry.session.CropSettings(i))
}

func (ui *CompositorUI) handleUndo(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	writeJSON(w, map[string]bool{"ok": entry.session.Undo()})
}

func (ui *CompositorUI) handleRedo(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	writeJSON(w, map[string]bool{"ok": entry.session.Redo()})
}

// --- state and handback ------------------------------------------------------

func (ui *CompositorUI) handleGetState(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	data, err := entry.session.Marshal()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (ui *CompositorUI) handlePutState(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	if err := entry.session.Restore(data); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHandback returns the book and template id to the host and closes the
// session.
func (ui *CompositorUI) handleHandback(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	bk, templateID := entry.session.Handback()
	writeJSON(w, map[string]any{"book": bk, "templateId": templateID})

	id := chi.URLParam(r, "sessionID")
	ui.sessionsM.Lock()
	delete(ui.sessions, id)
	ui.sessionsM.Unlock()
	entry.session.Close()
	slog.Info("session handed back", "session", id)
}

// --- exports -------------------------------------------------------------------

func (ui *CompositorUI) exportOptions(entry *sessionEntry, r *http.Request) export.Options {
	s := entry.session
	return export.Options{
		SizeID:         s.SizeID(),
		TemplateID:     s.TemplateID(),
		Quality:        export.Quality(r.URL.Query().Get("quality")),
		Format:         r.URL.Query().Get("format"),
		Customizations: s.Customizations(),
		Overrides: func(i int) render.PageOverrides {
			return render.PageOverrides{
				Frame: s.FrameSettings(i),
				Text:  s.TextSettings(i),
				Crop:  s.CropSettings(i),
			}
		},
	}
}

func (ui *CompositorUI) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	bk := entry.session.Book()
	data, err := entry.exporter.PDF(r.Context(), bk, ui.exportOptions(entry, r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bk.Slug()+".pdf"))
	w.Write(data)
}

func (ui *CompositorUI) handleExportImages(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	bk := entry.session.Book()
	images, err := entry.exporter.ImageSequence(r.Context(), bk, ui.exportOptions(entry, r))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, im := range images {
		f, err := zw.Create(im.Filename)
		if err == nil {
			_, err = f.Write(im.Data)
		}
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bk.Slug()+"-pages.zip"))
	w.Write(buf.Bytes())
}
