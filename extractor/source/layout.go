package source

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/aqlanhadi/stmtscan/extractor/common"
)

const (
	defaultPageHeight = 792.0
	defaultFontSize   = 10.0

	// gaps wider than this many font sizes (and minColumnGap) split cells
	columnGapFactor = 1.5
	minColumnGap    = 12.0
	// gaps wider than this many font sizes get a space inside a cell
	wordGapFactor = 0.15
	// consecutive rows further apart than this many line heights end a table
	rowGapFactor = 2.0
)

// glyph is one positioned text run in PDF user space (origin bottom-left).
type glyph struct {
	X, Y, W float64
	Size    float64
	S       string
}

func (g glyph) size() float64 {
	if g.Size > 0 {
		return g.Size
	}
	return defaultFontSize
}

func (g glyph) width() float64 {
	if g.W > 0 {
		return g.W
	}
	return g.size() * 0.5 * float64(utf8.RuneCountInString(g.S))
}

// phrase is a run of glyphs with no column gap, in top-down page space.
type phrase struct {
	text string
	box  common.Rect
}

type textLine struct {
	phrases []phrase
	box     common.Rect
}

// buildLines groups glyphs into baselines, top to bottom, and each baseline
// into phrases split at column-sized gaps.
func buildLines(glyphs []glyph, height float64) []textLine {
	visible := make([]glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) != "" {
			visible = append(visible, g)
		}
	}
	slices.SortStableFunc(visible, func(a, b glyph) int {
		if c := cmp.Compare(b.Y, a.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})

	var groups [][]glyph
	for _, g := range visible {
		n := len(groups)
		if n > 0 && math.Abs(groups[n-1][0].Y-g.Y) <= g.size()*0.4 {
			groups[n-1] = append(groups[n-1], g)
			continue
		}
		groups = append(groups, []glyph{g})
	}

	lines := make([]textLine, 0, len(groups))
	for _, group := range groups {
		slices.SortStableFunc(group, func(a, b glyph) int { return cmp.Compare(a.X, b.X) })
		lines = append(lines, lineFrom(group, height))
	}
	return lines
}

func lineFrom(group []glyph, height float64) textLine {
	var line textLine
	var cur *phrase
	var builder strings.Builder
	prevRight := 0.0

	closePhrase := func() {
		if cur != nil {
			cur.text = builder.String()
			line.phrases = append(line.phrases, *cur)
			builder.Reset()
		}
	}

	for _, g := range group {
		box := common.Rect{
			Left:   g.X,
			Top:    height - g.Y - g.size(),
			Right:  g.X + g.width(),
			Bottom: height - g.Y,
		}
		gap := g.X - prevRight
		switch {
		case cur == nil || gap > math.Max(minColumnGap, g.size()*columnGapFactor):
			closePhrase()
			cur = &phrase{box: box}
		case gap > g.size()*wordGapFactor:
			builder.WriteByte(' ')
			cur.box = union(cur.box, box)
		default:
			cur.box = union(cur.box, box)
		}
		builder.WriteString(strings.TrimSpace(g.S))
		prevRight = box.Right
	}
	closePhrase()

	for i, ph := range line.phrases {
		if i == 0 {
			line.box = ph.box
		} else {
			line.box = union(line.box, ph.box)
		}
	}
	return line
}

// detectTables treats every run of two or more adjacent multi-cell lines as
// a table. The first line fixes the columns.
func detectTables(lines []textLine) []common.Table {
	var tables []common.Table
	var run []textLine

	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, gridFrom(run))
		}
		run = nil
	}

	for _, line := range lines {
		if len(line.phrases) < 2 {
			flush()
			continue
		}
		if n := len(run); n > 0 {
			prev := run[n-1]
			if line.box.Top-prev.box.Bottom > rowGapFactor*(prev.box.Bottom-prev.box.Top) {
				flush()
			}
		}
		run = append(run, line)
	}
	flush()

	return tables
}

func gridFrom(run []textLine) common.Table {
	columns := make([]common.Rect, len(run[0].phrases))
	for i, ph := range run[0].phrases {
		columns[i] = ph.box
	}

	table := common.Table{Rows: make([][]string, 0, len(run))}
	bounds := run[0].box
	for _, line := range run {
		cells := make([]string, len(columns))
		for _, ph := range line.phrases {
			c := columnFor(ph.box, columns)
			cells[c] = strings.TrimSpace(cells[c] + " " + ph.text)
		}
		table.Rows = append(table.Rows, cells)
		bounds = union(bounds, line.box)
	}
	table.Bounds = &bounds
	return table
}

// columnFor picks the column with the widest horizontal overlap, or the
// nearest one by center when nothing overlaps.
func columnFor(box common.Rect, columns []common.Rect) int {
	best, bestOverlap := -1, 0.0
	for i, col := range columns {
		overlap := math.Min(box.Right, col.Right) - math.Max(box.Left, col.Left)
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	if best >= 0 {
		return best
	}

	center := (box.Left + box.Right) / 2
	best, bestDist := 0, math.Inf(1)
	for i, col := range columns {
		if d := math.Abs(center - (col.Left+col.Right)/2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// cropLines returns the text of phrases vertically centered inside r and
// horizontally overlapping it.
func cropLines(lines []textLine, r common.Rect) string {
	var out []string
	for _, line := range lines {
		var parts []string
		for _, ph := range line.phrases {
			mid := (ph.box.Top + ph.box.Bottom) / 2
			if mid < r.Top || mid > r.Bottom || ph.box.Right < r.Left || ph.box.Left > r.Right {
				continue
			}
			parts = append(parts, ph.text)
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, " "))
		}
	}
	return strings.Join(out, "\n")
}

func union(a, b common.Rect) common.Rect {
	return common.Rect{
		Left:   math.Min(a.Left, b.Left),
		Top:    math.Min(a.Top, b.Top),
		Right:  math.Max(a.Right, b.Right),
		Bottom: math.Max(a.Bottom, b.Bottom),
	}
}
