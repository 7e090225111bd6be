package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	licenseOnce sync.Once
	licenseErr  error
)

func setLicense(key string) error {
	licenseOnce.Do(func() {
		licenseErr = license.SetMeteredKey(key)
	})
	return licenseErr
}

type uniPage struct {
	text   string
	tables []common.Table
	lines  []textLine
}

// UniPDF is a Source backed by unipdf's layout extractor, which finds ruled
// and unruled tables on its own. Pages are extracted when the file is read.
type UniPDF struct {
	pages []uniPage
}

// ReadUniPDF needs a unidoc metered license key. The key is registered once
// per process.
func ReadUniPDF(r io.Reader, key string) (doc *UniPDF, err error) {
	if err := setLicense(key); err != nil {
		return nil, fmt.Errorf("%w: unidoc license: %v", common.ErrSourceRead, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: unipdf panic: %v", common.ErrSourceRead, rec)
		}
	}()

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}
	count, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}

	doc = &UniPDF{pages: make([]uniPage, 0, count)}
	for n := 1; n <= count; n++ {
		page, err := reader.GetPage(n)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", common.ErrSourceRead, n, err)
		}
		p, err := extractUniPage(page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", common.ErrSourceRead, n, err)
		}
		doc.pages = append(doc.pages, p)
	}
	return doc, nil
}

func extractUniPage(page *model.PdfPage) (uniPage, error) {
	height := defaultPageHeight
	if box, err := page.GetMediaBox(); err == nil && box.Height() > 0 {
		height = box.Height()
	}

	ex, err := extractor.New(page)
	if err != nil {
		return uniPage{}, err
	}
	pt, _, _, err := ex.ExtractPageText()
	if err != nil {
		return uniPage{}, err
	}

	var p uniPage
	p.text = strings.TrimSpace(pt.Text())

	for _, t := range pt.Tables() {
		rows := make([][]string, 0, len(t.Cells))
		for _, row := range t.Cells {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = strings.TrimSpace(cell.Text)
			}
			rows = append(rows, cells)
		}
		bounds := topDown(t.PdfRectangle, height)
		p.tables = append(p.tables, common.Table{Rows: rows, Bounds: &bounds})
	}

	marks := pt.Marks().Elements()
	glyphs := make([]glyph, 0, len(marks))
	for _, m := range marks {
		glyphs = append(glyphs, glyph{
			X:    m.BBox.Llx,
			Y:    m.BBox.Lly,
			W:    m.BBox.Width(),
			Size: m.BBox.Height(),
			S:    m.Text,
		})
	}
	p.lines = buildLines(glyphs, height)

	return p, nil
}

func topDown(r model.PdfRectangle, height float64) common.Rect {
	return common.Rect{
		Left:   r.Llx,
		Top:    height - r.Ury,
		Right:  r.Urx,
		Bottom: height - r.Lly,
	}
}

func (u *UniPDF) PageCount() int {
	return len(u.pages)
}

func (u *UniPDF) page(i int) (*uniPage, error) {
	if i < 0 || i >= len(u.pages) {
		return nil, fmt.Errorf("%w: page %d out of range (%d pages)", common.ErrSourceRead, i+1, len(u.pages))
	}
	return &u.pages[i], nil
}

func (u *UniPDF) PageText(i int) (string, error) {
	p, err := u.page(i)
	if err != nil {
		return "", err
	}
	return p.text, nil
}

func (u *UniPDF) PageTables(i int) ([]common.Table, error) {
	p, err := u.page(i)
	if err != nil {
		return nil, err
	}
	return p.tables, nil
}

func (u *UniPDF) CropText(i int, r common.Rect) (string, error) {
	p, err := u.page(i)
	if err != nil {
		return "", err
	}
	return cropLines(p.lines, r), nil
}
