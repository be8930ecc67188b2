package render

import "math"

// Viewport is a window of Height lines over a chapter's lines.
type Viewport struct {
	lines  []string
	height int
	offset int
}

// NewViewport shows height lines at a time.
func NewViewport(lines []string, height int) *Viewport {
	return &Viewport{lines: lines, height: max(height, 1)}
}

// Visible returns the lines on screen.
func (v *Viewport) Visible() []string {
	end := min(v.offset+v.height, len(v.lines))
	return v.lines[v.offset:end]
}

func (v *Viewport) maxOffset() int {
	return max(len(v.lines)-v.height, 0)
}

// Down scrolls one screen forward; it reports whether the view moved.
func (v *Viewport) Down() bool {
	return v.scrollTo(v.offset + v.height)
}

// Up scrolls one screen back; it reports whether the view moved.
func (v *Viewport) Up() bool {
	return v.scrollTo(v.offset - v.height)
}

func (v *Viewport) scrollTo(offset int) bool {
	offset = min(max(offset, 0), v.maxOffset())
	moved := offset != v.offset
	v.offset = offset
	return moved
}

// AtEnd reports whether the last line is on screen.
func (v *Viewport) AtEnd() bool {
	return v.offset >= v.maxOffset()
}

// Percent is how far through the chapter the view is, in [0,100]. A chapter
// that fits on one screen counts as read.
func (v *Viewport) Percent() float64 {
	total := v.maxOffset()
	if total == 0 {
		return 100
	}
	return float64(v.offset*100) / float64(total)
}

// SetPercent moves the view to a position saved by Percent.
func (v *Viewport) SetPercent(p float64) {
	p = min(max(p, 0), 100)
	v.scrollTo(int(math.Round(p / 100 * float64(v.maxOffset()))))
}
