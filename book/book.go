// Package book defines the input model the compositor operates on: a titled,
// ordered sequence of story pages, each carrying text and an optional
// illustration URL. Books are produced by the host application and treated as
// immutable by every other package.
package book

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Page is a single story page. Page numbers start at 1 and are unique within
// a book; ordering is significant.
type Page struct {
	Page     int    `json:"page"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Book is the compositor input.
type Book struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Pages  []Page `json:"pages"`
}

// Load parses and validates a book from JSON.
func Load(r io.Reader) (*Book, error) {
	var b Book
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding book: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(b.Pages, func(i, j int) bool {
		return b.Pages[i].Page < b.Pages[j].Page
	})
	return &b, nil
}

// LoadFile reads a book from a JSON file on disk.
func LoadFile(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening book file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks the structural invariants: at least one page, positive and
// unique page numbers.
func (b *Book) Validate() error {
	if len(b.Pages) == 0 {
		return fmt.Errorf("book has no pages")
	}
	seen := make(map[int]bool, len(b.Pages))
	for _, p := range b.Pages {
		if p.Page < 1 {
			return fmt.Errorf("page number %d is not positive", p.Page)
		}
		if seen[p.Page] {
			return fmt.Errorf("duplicate page number %d", p.Page)
		}
		seen[p.Page] = true
	}
	return nil
}

// Slug returns a filesystem-safe basename derived from the title, used for
// export filenames. An untitled book slugs to "book".
func (b *Book) Slug() string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(b.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(sb.String(), "-")
	if s == "" {
		return "book"
	}
	return s
}
