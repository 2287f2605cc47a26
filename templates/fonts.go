package templates

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// FontFace is one catalog entry. Remote faces must be fetched from the font
// service before raster rendering can use their real metrics; system faces
// are always available.
type FontFace struct {
	Family   string   `json:"family"`
	Category string   `json:"category"` // serif, sans-serif, display
	Weights  []string `json:"weights"`
	Remote   bool     `json:"remote"`
}

// Catalog lists the supported font families in stable order.
func Catalog() []FontFace {
	return []FontFace{
		{Family: "Helvetica", Category: "sans-serif", Weights: []string{"normal", "bold"}},
		{Family: "Times", Category: "serif", Weights: []string{"normal", "bold"}},
		{Family: "Courier", Category: "monospace", Weights: []string{"normal", "bold"}},
		{Family: "Baloo 2", Category: "display", Weights: []string{"normal", "bold"}, Remote: true},
		{Family: "Quicksand", Category: "sans-serif", Weights: []string{"normal", "bold"}, Remote: true},
		{Family: "Patrick Hand", Category: "display", Weights: []string{"normal"}, Remote: true},
		{Family: "Lora", Category: "serif", Weights: []string{"normal", "bold"}, Remote: true},
	}
}

// LookupFace finds a catalog entry by family name.
func LookupFace(family string) (FontFace, bool) {
	for _, f := range Catalog() {
		if f.Family == family {
			return f, true
		}
	}
	return FontFace{}, false
}

// DefaultFontServiceURL is the web-font service remote families are fetched
// from; %s is the URL-escaped family name.
const DefaultFontServiceURL = "https://fonts.example.com/ttf?family=%s"

// FontLoader fetches remote font families at most once each. Concurrent
// loads of the same family coalesce onto a single fetch; repeat loads are
// no-ops. Rendering never blocks on the loader: callers that can proceed
// with fallback metrics simply skip Bytes.
type FontLoader struct {
	ServiceURL string
	Client     *http.Client

	mu       sync.Mutex
	loaded   map[string][]byte
	inflight map[string]chan struct{}
}

// NewFontLoader builds a loader against the given service URL pattern
// (empty means DefaultFontServiceURL).
func NewFontLoader(serviceURL string) *FontLoader {
	if serviceURL == "" {
		serviceURL = DefaultFontServiceURL
	}
	return &FontLoader{
		ServiceURL: serviceURL,
		Client:     &http.Client{Timeout: 20 * time.Second},
		loaded:     make(map[string][]byte),
		inflight:   make(map[string]chan struct{}),
	}
}

// Load ensures family is fetched. System families and unknown families
// resolve immediately.
func (l *FontLoader) Load(ctx context.Context, family string) error {
	face, ok := LookupFace(family)
	if !ok || !face.Remote {
		return nil
	}

	l.mu.Lock()
	if _, ok := l.loaded[family]; ok {
		l.mu.Unlock()
		return nil
	}
	if ch, ok := l.inflight[family]; ok {
		l.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	l.inflight[family] = ch
	l.mu.Unlock()

	data, err := l.fetch(ctx, family)

	l.mu.Lock()
	delete(l.inflight, family)
	if err == nil {
		l.loaded[family] = data
	} else {
		// Cache the miss so text measurement stays best-effort instead of
		// re-fetching on every render.
		l.loaded[family] = nil
		slog.Warn("font load failed", "family", family, "err", err)
	}
	l.mu.Unlock()
	close(ch)
	return nil
}

// Bytes returns the fetched font program for family, or nil when the family
// is a system face, unknown, or its fetch failed.
func (l *FontLoader) Bytes(family string) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[family]
}

func (l *FontLoader) fetch(ctx context.Context, family string) ([]byte, error) {
	u := fmt.Sprintf(l.ServiceURL, url.QueryEscape(family))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("font service returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
