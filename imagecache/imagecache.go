// Package imagecache resolves remote illustration URLs to inline data URIs
// with a session-lifetime cache. Fetch or encode failures are recovered
// locally: the original URL is cached and returned, and downstream rendering
// tolerates both forms.
package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	_ "image/gif"
	_ "image/png"
)

// jpegQuality matches the lossy encode quality of the resolved data URIs.
const jpegQuality = 92

// Cache resolves and memoizes illustration URLs for one compositor session.
type Cache struct {
	Client *http.Client

	store *gocache.Cache

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// New builds an empty cache. Entries age out after 24 hours so a long-lived
// host process does not pin every illustration it ever saw.
func New() *Cache {
	return &Cache{
		Client:   &http.Client{Timeout: 30 * time.Second},
		store:    gocache.New(24*time.Hour, 1*time.Hour),
		inflight: make(map[string]chan struct{}),
	}
}

// Resolve maps url to an inline data URI, or back to the original URL when
// the image cannot be fetched and re-encoded. Empty input resolves to "".
// Concurrent resolutions of one URL coalesce onto a single fetch.
func (c *Cache) Resolve(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "data:") {
		return url
	}
	if v, ok := c.store.Get(url); ok {
		return v.(string)
	}

	c.mu.Lock()
	if ch, ok := c.inflight[url]; ok {
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return url
		}
		if v, ok := c.store.Get(url); ok {
			return v.(string)
		}
		return url
	}
	ch := make(chan struct{})
	c.inflight[url] = ch
	c.mu.Unlock()

	resolved := c.resolve(ctx, url)
	c.store.Set(url, resolved, gocache.DefaultExpiration)

	c.mu.Lock()
	delete(c.inflight, url)
	c.mu.Unlock()
	close(ch)

	return resolved
}

func (c *Cache) resolve(ctx context.Context, url string) string {
	data, err := c.fetch(ctx, url)
	if err != nil {
		slog.Warn("image fetch failed, keeping original URL", "url", url, "err", err)
		return url
	}
	uri, err := encodeDataURI(data)
	if err != nil {
		slog.Warn("image encode failed, keeping original URL", "url", url, "err", err)
		return url
	}
	return uri
}

// Image returns decoded pixels for url, for rasterization. Data URIs decode
// in place; anything else goes through Resolve first so the bytes are
// fetched at most once per session.
func (c *Cache) Image(ctx context.Context, url string) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("empty image url")
	}
	resolved := c.Resolve(ctx, url)
	if strings.HasPrefix(resolved, "data:") {
		return decodeDataURI(resolved)
	}
	// Resolve fell back to the raw URL; try the bytes directly. This can
	// still fail, and callers simply omit the image.
	data, err := c.fetch(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("fetching image %s: %w", url, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", url, err)
	}
	return img, nil
}

// Flush drops every cached entry.
func (c *Cache) Flush() { c.store.Flush() }

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func encodeDataURI(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encoding jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeDataURI(uri string) (image.Image, error) {
	_, b64, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, fmt.Errorf("unsupported data URI encoding")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding data URI image: %w", err)
	}
	return img, nil
}
