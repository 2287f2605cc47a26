package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const bookJSON = `{
	"title": "Willow and the Fox",
	"author": "M. Hale",
	"pages": [
		{"page": 1, "text": "Willow found a fox in the garden."},
		{"page": 2, "text": "The fox wore a tiny red scarf."},
		{"page": 3, "text": "They became the best of friends."}
	]
}`

func newTestUI(t *testing.T) (*CompositorUI, *httptest.Server) {
	t.Helper()
	ui := NewCompositorUI()
	srv := httptest.NewServer(ui)
	t.Cleanup(func() {
		srv.Close()
		ui.Close()
	})
	return ui, srv
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(bookJSON))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var out struct {
		SessionID  string `json:"sessionId"`
		TemplateID string `json:"templateId"`
		PageCount  int    `json:"pageCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.PageCount != 3 || out.TemplateID == "" {
		t.Fatalf("unexpected create response: %+v", out)
	}
	return out.SessionID
}

func TestCreateSessionAndFetchPage(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/page?page=1")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("page response is not SVG")
	}
}

func TestCreateSessionRejectsBadBook(t *testing.T) {
	_, srv := newTestUI(t)
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"pages":[]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	_, srv := newTestUI(t)
	resp, err := http.Get(srv.URL + "/sessions/nope/page")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMutateAndReadBack(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp, err := http.Post(base+"/template", "application/json",
		strings.NewReader(`{"templateId":"playful-star"}`))
	if err != nil {
		t.Fatalf("set template: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(base+"/pages/1/frame", "application/json",
		strings.NewReader(`{"scale": 9, "offsetX": 0.05}`))
	if err != nil {
		t.Fatalf("set frame: %v", err)
	}
	var fs struct {
		Scale   float64 `json:"scale"`
		OffsetX float64 `json:"offsetX"`
	}
	json.NewDecoder(resp.Body).Decode(&fs)
	resp.Body.Close()
	if fs.Scale != 1.5 || fs.OffsetX != 0.05 {
		t.Errorf("frame settings = %+v, want clamped scale 1.5", fs)
	}

	resp, err = http.Get(base + "/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	var state struct {
		TemplateID string `json:"templateId"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.TemplateID != "playful-star" {
		t.Errorf("state template = %q", state.TemplateID)
	}
}

func TestUndoEndpoint(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp, _ := http.Post(base+"/undo", "application/json", nil)
	var out struct {
		OK bool `json:"ok"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if out.OK {
		t.Error("undo on a fresh session reported ok")
	}

	resp, _ = http.Post(base+"/pages/0/crop", "application/json",
		strings.NewReader(`{"cropZoom": 2}`))
	resp.Body.Close()
	resp, _ = http.Post(base+"/undo", "application/json", nil)
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if !out.OK {
		t.Error("undo after a mutation reported not ok")
	}
}

func TestExportPDFDownload(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/export/pdf?quality=draft")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "willow-and-the-fox.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("response is not a PDF")
	}
}

func TestExportImagesZip(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/export/images?quality=draft")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("response is not a zip archive")
	}
}

func TestHandbackClosesSession(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp, err := http.Post(base+"/handback", "application/json", nil)
	if err != nil {
		t.Fatalf("handback: %v", err)
	}
	var out struct {
		TemplateID string `json:"templateId"`
		Book       struct {
			Title string `json:"title"`
		} `json:"book"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if out.Book.Title != "Willow and the Fox" || out.TemplateID == "" {
		t.Errorf("handback payload = %+v", out)
	}

	resp, _ = http.Get(base + "/page")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("session still reachable after handback: %d", resp.StatusCode)
	}
}

func TestWebSocketStreamsPreviewFrames(t *testing.T) {
	_, srv := newTestUI(t)
	id := createSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var msg struct {
		Type string `json:"type"`
		Page int    `json:"page"`
		SVG  string `json:"svg"`
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("initial frame: %v", err)
	}
	if msg.Type != "render" || !strings.Contains(msg.SVG, "<svg") {
		t.Fatalf("initial frame = %+v", msg)
	}

	base := srv.URL + "/sessions/" + id
	for i := 0; i < 3; i++ {
		r, err := http.Post(base+"/pages/0/frame", "application/json",
			strings.NewReader(`{"scale": 0.8}`))
		if err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
		r.Body.Close()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("frame after mutation %d: %v", i, err)
		}
		if msg.Page != 0 || !strings.Contains(msg.SVG, "<svg") {
			t.Fatalf("pushed frame = page %d, svg %d bytes", msg.Page, len(msg.SVG))
		}
	}
}

func TestHealth(t *testing.T) {
	_, srv := newTestUI(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}
