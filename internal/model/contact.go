package model

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ContactTable is a tabular contact file: a header row plus records.
// Rows may be shorter than Columns; missing cells read as "".
type ContactTable struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of name, or -1. Matching is exact first, then case-insensitive.
func (t *ContactTable) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func (t *ContactTable) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// SetValue writes a cell, padding the row when needed.
func (t *ContactTable) SetValue(row, col int, v string) {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return
	}
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = v
}

// RowMap returns the record keyed by column name.
func (t *ContactTable) RowMap(row int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		m[c] = t.Value(row, i)
	}
	return m
}

func (t *ContactTable) Len() int { return len(t.Rows) }

// ReadContactsFile picks a reader from the file extension.
func ReadContactsFile(name string, r io.Reader) (*ContactTable, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return ReadContactsCSV(r)
	case ".xlsx", ".xlsm":
		return ReadContactsXLSX(r)
	default:
		return nil, fmt.Errorf("%w: unsupported contact file type %q", ErrValidation, filepath.Ext(name))
	}
}

func ReadContactsCSV(r io.Reader) (*ContactTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", ErrValidation, err)
	}
	return tableFromRecords(records)
}

// ReadContactsXLSX reads the first sheet of a workbook.
func ReadContactsXLSX(r io.Reader) (*ContactTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrValidation)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %v", ErrValidation, sheets[0], err)
	}
	return tableFromRecords(rows)
}

func tableFromRecords(records [][]string) (*ContactTable, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: contact file is empty", ErrValidation)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	return &ContactTable{Columns: header, Rows: records[1:]}, nil
}

func WriteContactsCSV(w io.Writer, t *ContactTable) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	for i := range t.Rows {
		row := make([]string, len(t.Columns))
		for c := range t.Columns {
			row[c] = t.Value(i, c)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteContactsXLSX(w io.Writer, t *ContactTable) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Contacts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	for c, header := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, header)
	}

	if len(t.Columns) > 0 {
		headerStyle, _ := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	// numbers are written as text so long digit strings keep every digit
	for r := range t.Rows {
		for c := range t.Columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			f.SetCellStr(sheetName, cell, t.Value(r, c))
		}
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	return f.Write(w)
}

// SampleNumbers returns up to n numbers picked at random without replacement.
func SampleNumbers(numbers []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if n >= len(numbers) {
		out := make([]string, len(numbers))
		copy(out, numbers)
		return out
	}
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(numbers))[:n] {
		out = append(out, numbers[i])
	}
	return out
}
