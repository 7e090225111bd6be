package source

import (
	"fmt"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
)

// PageBreak separates pages in pre-extracted text.
const PageBreak = "\f"

// Region is a block of page text with its position, used for crops.
type Region struct {
	Bounds common.Rect
	Text   string
}

type MemoryPage struct {
	Text    string
	Tables  []common.Table
	Regions []Region
}

// Memory is a Source over pages already held in memory.
type Memory struct {
	Pages []MemoryPage
}

// FromText splits pre-extracted text into pages on form feeds. Such pages
// carry no tables.
func FromText(text string) *Memory {
	m := &Memory{}
	if strings.TrimSpace(text) == "" {
		return m
	}
	for _, page := range strings.Split(text, PageBreak) {
		m.Pages = append(m.Pages, MemoryPage{Text: page})
	}
	return m
}

func (m *Memory) PageCount() int {
	return len(m.Pages)
}

func (m *Memory) page(i int) (*MemoryPage, error) {
	if i < 0 || i >= len(m.Pages) {
		return nil, fmt.Errorf("%w: page %d out of range (%d pages)", common.ErrSourceRead, i+1, len(m.Pages))
	}
	return &m.Pages[i], nil
}

func (m *Memory) PageText(i int) (string, error) {
	p, err := m.page(i)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

func (m *Memory) PageTables(i int) ([]common.Table, error) {
	p, err := m.page(i)
	if err != nil {
		return nil, err
	}
	return p.Tables, nil
}

// CropText joins the regions that overlap r, in page order.
func (m *Memory) CropText(i int, r common.Rect) (string, error) {
	p, err := m.page(i)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, region := range p.Regions {
		if region.Bounds.Intersects(r) {
			parts = append(parts, region.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
