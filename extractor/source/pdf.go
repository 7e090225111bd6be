package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/dslipak/pdf"
)

// PDF is a Source backed by dslipak/pdf. Page text comes from the library's
// row grouping; tables and crops are rebuilt from glyph positions. A PDF
// caches per-page results and is not safe for concurrent use.
type PDF struct {
	reader  *pdf.Reader
	texts   map[int]string
	layouts map[int][]textLine
}

// OpenPDF reads the whole file into memory so no handle outlives the call.
func OpenPDF(path string) (*PDF, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}
	defer file.Close()
	return ReadPDF(file)
}

func ReadPDF(r io.Reader) (*PDF, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}
	reader, err := newPDFReader(data)
	if err != nil {
		return nil, err
	}
	return &PDF{
		reader:  reader,
		texts:   make(map[int]string),
		layouts: make(map[int][]textLine),
	}, nil
}

func newPDFReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: pdf library panic: %v", common.ErrSourceRead, rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}
	return r, nil
}

func (p *PDF) PageCount() int {
	return p.reader.NumPage()
}

func (p *PDF) page(i int) (pdf.Page, error) {
	if i < 0 || i >= p.reader.NumPage() {
		return pdf.Page{}, fmt.Errorf("%w: page %d out of range (%d pages)", common.ErrSourceRead, i+1, p.reader.NumPage())
	}
	return p.reader.Page(i + 1), nil
}

func (p *PDF) PageText(i int) (text string, err error) {
	if text, ok := p.texts[i]; ok {
		return text, nil
	}
	defer guard(i, &err)

	page, err := p.page(i)
	if err != nil {
		return "", err
	}
	if page.V.IsNull() {
		return "", nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %v", common.ErrSourceRead, i+1, err)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var builder strings.Builder
		builder.Grow(len(row.Content) * 20)
		for j, t := range row.Content {
			builder.WriteString(t.S)
			if j < len(row.Content)-1 {
				builder.WriteByte(' ')
			}
		}
		if line := strings.TrimSpace(builder.String()); line != "" {
			lines = append(lines, line)
		}
	}

	text = strings.Join(lines, "\n")
	p.texts[i] = text
	return text, nil
}

func (p *PDF) PageTables(i int) ([]common.Table, error) {
	lines, err := p.layout(i)
	if err != nil {
		return nil, err
	}
	return detectTables(lines), nil
}

func (p *PDF) CropText(i int, r common.Rect) (string, error) {
	lines, err := p.layout(i)
	if err != nil {
		return "", err
	}
	return cropLines(lines, r), nil
}

func (p *PDF) layout(i int) (lines []textLine, err error) {
	if lines, ok := p.layouts[i]; ok {
		return lines, nil
	}
	defer guard(i, &err)

	page, err := p.page(i)
	if err != nil {
		return nil, err
	}
	if page.V.IsNull() {
		return nil, nil
	}

	content := page.Content()
	glyphs := make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}

	lines = buildLines(glyphs, mediaHeight(page))
	p.layouts[i] = lines
	return lines, nil
}

// mediaHeight reads the page height, falling back to US letter when the
// MediaBox is missing or inherited from further up the page tree.
func mediaHeight(page pdf.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.IsNull() {
		box = page.V.Key("Parent").Key("MediaBox")
	}
	if box.Len() == 4 {
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			return h
		}
	}
	return defaultPageHeight
}

func guard(page int, err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: page %d: pdf library panic: %v", common.ErrSourceRead, page+1, rec)
	}
}
