package render

import (
	"bytes"
	"math"
	"strings"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

// Text auto-sizing constants. Width estimation is intentionally approximate
// (average glyph width rather than font metrics); the layout accepts up to
// ~10% misfit instead of carrying a shaping engine.
const (
	MinFontSize  = 12
	avgCharRatio = 0.5
)

// FitText wraps text into the slot and picks an integer font size. slot
// dimensions are in points; base is the pre-scaled font size. Lines are
// wrapped once at the base size; only the size is rescaled afterwards.
func FitText(text string, slotW, slotH, base, lineHeight float64) (int, []string) {
	text = strings.TrimSpace(text)
	if text == "" || base <= 0 {
		return int(math.Round(base)), nil
	}

	avg := avgCharRatio * base
	charsPerLine := int(slotW / avg)
	if charsPerLine < 1 {
		charsPerLine = 1
	}
	lines := wrapWords(text, charsPerLine)

	size := base
	total := float64(len(lines)) * base * lineHeight
	switch {
	case total > slotH:
		size = base * 0.9 * slotH / total
		if size < MinFontSize {
			size = MinFontSize
		}
	case total < 0.5*slotH && len(lines) <= 3:
		grow := math.Min(1.3, slotH/total*0.7)
		size = base * grow
		if max := 1.5 * base; size > max {
			size = max
		}
	}
	return int(math.Round(size)), lines
}

// wrapWords greedily packs words into lines of at most charsPerLine
// characters. A single word longer than the limit gets its own line and may
// exceed the slot; per-word measurement is an accepted refinement, not a
// requirement.
func wrapWords(text string, charsPerLine int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case cur.Len()+1+len(word) > charsPerLine:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(word)
		default:
			cur.WriteByte(' ')
			cur.WriteString(word)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// PlainText flattens light markdown in page text to plain prose before
// wrapping: run it through blackfriday, then strip tags from the generated
// HTML. Text without markup passes through unchanged apart from whitespace
// normalization.
func PlainText(text string) string {
	if !strings.ContainsAny(text, "*_#`[") {
		return strings.Join(strings.Fields(text), " ")
	}
	rendered := blackfriday.Run([]byte(text))
	doc, err := html.Parse(bytes.NewReader(rendered))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Excerpt shortens page text to at most max runes for list views.
func Excerpt(text string, max int) string {
	plain := PlainText(text)
	runes := []rune(plain)
	if len(runes) <= max {
		return plain
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
