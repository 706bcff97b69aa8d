package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const (
	FileTypeCSV  = "csv"
	FileTypeJSON = "json"
	FileTypeXLSX = "xlsx"
)

// DefaultCSVMaxDataLines bounds how many data lines after the header are examined.
const DefaultCSVMaxDataLines = 999

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Row maps a column name to its value. CSV and XLSX values are strings,
// JSON values keep their decoded type (numbers as json.Number).
type Row map[string]any

// Table is the uniform output of every parser.
type Table struct {
	Columns []string
	Rows    []Row
	// Dropped counts examined lines rejected for a field-count mismatch.
	Dropped int
	// Normalized counts JSON rows whose keys differed from Columns.
	Normalized int
}

// RowCount is the number of accepted rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Sample returns at most n leading rows.
func (t *Table) Sample(n int) []Row {
	if n <= 0 || n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[:n]
}

// SampleJSON renders the first n rows as an indented JSON array whose object
// keys follow the column order.
func (t *Table) SampleJSON(n int) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Sample(n) {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return "", err
			}
			val, err := json.Marshal(row[col])
			if err != nil {
				return "", err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// NormalizeFileType lowercases a file type hint and strips surrounding dots.
func NormalizeFileType(fileType string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(fileType)), ".")
}

// IsSupported reports whether a parser exists for the file type.
func IsSupported(fileType string) bool {
	switch NormalizeFileType(fileType) {
	case FileTypeCSV, FileTypeJSON, FileTypeXLSX:
		return true
	default:
		return false
	}
}

// SupportedTypes lists the parser keys.
func SupportedTypes() []string {
	return []string{FileTypeCSV, FileTypeJSON, FileTypeXLSX}
}

// cleanField trims whitespace and removes every double quote.
func cleanField(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), `"`, "")
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
