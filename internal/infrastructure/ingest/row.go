package ingest

// Row is one parsed source row, shared by the CSV and workbook parsers
// so the normalizer never cares which file format it came from.
type Row struct {
	LineNumber int
	Data       map[string]string
	RawFields  []string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// RowSource is a file parser producing header-mapped rows.
type RowSource interface {
	Headers() []string
	HasHeader(name string) bool
	ReadAllRows() ([]*Row, error)
}
