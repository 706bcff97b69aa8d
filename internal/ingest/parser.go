package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Options struct {
	// CSVMaxDataLines caps the data lines examined for CSV and XLSX. <= 0 means no cap.
	CSVMaxDataLines int
	// JSONMaxRows caps JSON array elements. <= 0 means no cap.
	JSONMaxRows int
}

func DefaultOptions() Options {
	return Options{CSVMaxDataLines: DefaultCSVMaxDataLines}
}

// Parse decodes raw file content into a Table according to fileType.
func Parse(raw []byte, fileType string, opts Options) (*Table, error) {
	switch NormalizeFileType(fileType) {
	case FileTypeCSV:
		return ParseCSV(raw, opts.CSVMaxDataLines)
	case FileTypeJSON:
		return ParseJSON(raw, opts.JSONMaxRows)
	case FileTypeXLSX:
		return ParseXLSX(raw, opts.CSVMaxDataLines)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileType)
	}
}

// ParseCSV reads a header line followed by data lines. The body is framed on
// newlines first; lines that are blank after trimming are skipped. A data line
// becomes a row only when its field count equals the header's; other lines are
// dropped. At most maxDataLines data lines after the header are examined.
func ParseCSV(raw []byte, maxDataLines int) (*Table, error) {
	table := &Table{Columns: []string{}, Rows: []Row{}}
	headerRead := false
	examined := 0

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if headerRead && maxDataLines > 0 && examined >= maxDataLines {
			break
		}

		record, err := splitCSVLine(line)
		if !headerRead {
			if err != nil {
				return nil, fmt.Errorf("read csv header: %w", err)
			}
			for _, h := range record {
				table.Columns = append(table.Columns, cleanField(h))
			}
			headerRead = true
			continue
		}

		examined++
		if err != nil || len(record) != len(table.Columns) {
			table.Dropped++
			continue
		}
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			row[col] = cleanField(record[i])
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// splitCSVLine tokenises a single line. Quoted fields may hold commas; a line
// with an unbalanced quote is split on every comma.
func splitCSVLine(line string) ([]string, error) {
	if strings.Count(line, `"`)%2 == 1 {
		return strings.Split(line, ","), nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.Read()
}

// ParseJSON accepts a top-level array or a single value, which becomes one row.
// Columns come from the first object's keys in document order; every row is
// projected onto those columns (missing keys become null, extra keys are
// dropped). Elements that are not objects carry no keys.
func ParseJSON(raw []byte, maxRows int) (*Table, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty json document")
	}

	var elems []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
	} else {
		if !json.Valid(trimmed) {
			return nil, errors.New("decode json value: invalid json")
		}
		elems = []json.RawMessage{trimmed}
	}

	if maxRows > 0 && len(elems) > maxRows {
		elems = elems[:maxRows]
	}

	table := &Table{Columns: []string{}, Rows: make([]Row, 0, len(elems))}
	for i, elem := range elems {
		keys, obj, err := decodeObject(elem)
		if err != nil {
			return nil, fmt.Errorf("json element %d: %w", i, err)
		}
		if i == 0 && keys != nil {
			table.Columns = keys
		}

		row := make(Row, len(table.Columns))
		for _, col := range table.Columns {
			row[col] = obj[col]
		}
		if !sameKeys(keys, table.Columns) {
			table.Normalized++
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// decodeObject decodes a JSON object, returning its keys in document order. Any
// other value yields nil keys and an empty map.
func decodeObject(raw json.RawMessage) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, map[string]any{}, nil
	}

	keys := []string{}
	obj := map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		if _, seen := obj[key]; !seen {
			keys = append(keys, key)
		}
		obj[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, obj, nil
}

func sameKeys(keys, columns []string) bool {
	if len(keys) != len(columns) {
		return false
	}
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

// ParseXLSX reads the first worksheet. The first non-blank row is the header.
// Rows shorter than the header are padded with empty cells (spreadsheets omit
// trailing blanks); longer rows are dropped.
func ParseXLSX(raw []byte, maxDataLines int) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	table := &Table{Columns: []string{}, Rows: []Row{}}
	headerRead := false
	examined := 0
	for _, record := range records {
		if headerRead && maxDataLines > 0 && examined >= maxDataLines {
			break
		}
		if isBlankRecord(record) {
			continue
		}
		if !headerRead {
			for _, h := range record {
				table.Columns = append(table.Columns, cleanField(h))
			}
			headerRead = true
			continue
		}

		examined++
		if len(record) > len(table.Columns) {
			table.Dropped++
			continue
		}
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(record) {
				row[col] = cleanField(record[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
