package book

import (
	"strings"
	"testing"
)

func TestLoadSortsPages(t *testing.T) {
	in := `{"title":"T","pages":[{"page":3,"text":"c"},{"page":1,"text":"a"},{"page":2,"text":"b"}]}`
	b, err := Load(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if b.Pages[i].Page != want {
			t.Errorf("pages[%d].Page = %d, want %d", i, b.Pages[i].Page, want)
		}
	}
}

func TestLoadRejectsInvalidBooks(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad json", `{"pages":`},
		{"no pages", `{"title":"T","pages":[]}`},
		{"zero page number", `{"pages":[{"page":0,"text":"a"}]}`},
		{"negative page number", `{"pages":[{"page":-2,"text":"a"}]}`},
		{"duplicate page number", `{"pages":[{"page":1,"text":"a"},{"page":1,"text":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Moss Dragon", "the-moss-dragon"},
		{"Willow & the Fox!", "willow-the-fox"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"C3PO's Day", "c3po-s-day"},
		{"", "book"},
		{"!!!", "book"},
	}
	for _, tt := range tests {
		b := &Book{Title: tt.title}
		if got := b.Slug(); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
