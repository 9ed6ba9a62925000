package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads marketplace xlsx exports. Only the first sheet is
// consumed; that matches how the platforms generate their reports.
type XLSXParser struct {
	headerMap map[string]int
	headers   []string
	rows      []*Row
	totalRows int
}

// NewXLSXParser loads a workbook from a reader and parses the header row
// of its first sheet.
func NewXLSXParser(r io.Reader) (*XLSXParser, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}

	p := &XLSXParser{headerMap: make(map[string]int)}
	p.headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		header := strings.TrimSpace(h)
		p.headers[i] = header
		p.headerMap[header] = i
	}
	if len(p.headers) == 0 {
		return nil, ErrMissingHeader
	}

	for idx, record := range records[1:] {
		row := &Row{
			LineNumber: idx + 2, // header occupies row 1
			Data:       make(map[string]string, len(p.headers)),
			RawFields:  record,
		}
		for i, header := range p.headers {
			if i < len(record) {
				row.Data[header] = strings.TrimSpace(record[i])
			} else {
				row.Data[header] = ""
			}
		}
		if row.IsEmpty() {
			continue
		}
		p.rows = append(p.rows, row)
	}
	p.totalRows = len(p.rows)
	return p, nil
}

// Headers returns the parsed header names
func (p *XLSXParser) Headers() []string {
	return p.headers
}

// HasHeader checks if a header exists
func (p *XLSXParser) HasHeader(name string) bool {
	_, ok := p.headerMap[name]
	return ok
}

// ReadAllRows returns all data rows of the first sheet.
func (p *XLSXParser) ReadAllRows() ([]*Row, error) {
	return p.rows, nil
}

// TotalRows returns the number of non-empty data rows.
func (p *XLSXParser) TotalRows() int {
	return p.totalRows
}
