// Package render turns chapter HTML into wrapped terminal text.
package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/arcane-translator/arcane-reader/prefs"
)

// Paragraphs extracts the text paragraphs of a chapter body. Content with
// <p> elements yields one paragraph per element; anything else is split on
// line breaks.
func Paragraphs(content string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse chapter content: %w", err)
	}
	doc.Find("script, style, img").Remove()

	var out []string
	if ps := doc.Find("p"); ps.Length() > 0 {
		ps.Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				out = append(out, text)
			}
		})
		return out, nil
	}

	doc.Find("br").ReplaceWithHtml("\n")
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

// Layout controls how paragraphs are laid out.
type Layout struct {
	Width        int
	ParagraphGap int
}

// LayoutFor derives a layout from the reader preferences: larger fonts get
// fewer columns and taller line heights get wider paragraph gaps.
func LayoutFor(p prefs.ReaderPrefs, baseWidth int) Layout {
	p = p.Normalize()
	width := baseWidth * prefs.DefaultReaderPrefs().FontSize / p.FontSize
	gap := 1
	if p.LineHeight >= 1.8 {
		gap = 2
	}
	return Layout{Width: max(width, 20), ParagraphGap: gap}
}

// Lines wraps paragraphs to the layout width and returns the screen lines.
func (l Layout) Lines(paragraphs []string) []string {
	var lines []string
	for i, p := range paragraphs {
		if i > 0 {
			for j := 0; j < l.ParagraphGap; j++ {
				lines = append(lines, "")
			}
		}
		lines = append(lines, strings.Split(wordwrap.String(p, l.Width), "\n")...)
	}
	return lines
}

// Truncate shortens s to width terminal cells, marking the cut with an
// ellipsis.
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// PadRight pads s with spaces to width terminal cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
