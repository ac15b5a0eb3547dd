package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadContactsCSV(t *testing.T) {
	in := "\ufeffName , Phone\nAisyah,+60 12-345 6789\nBudi\n\"Chen, W\",0123456789,extra\n"

	table, err := ReadContactsFile("contacts.csv", strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Phone"}, table.Columns)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 1, table.Column("phone"))
	assert.Equal(t, -1, table.Column("email"))
	assert.Equal(t, "", table.Value(1, 1), "short rows read as empty cells")
	assert.Equal(t, "Chen, W", table.Value(2, 0))
	assert.Equal(t, map[string]string{"Name": "Aisyah", "Phone": "+60 12-345 6789"}, table.RowMap(0))
}

func TestReadContactsFileRejectsUnknownType(t *testing.T) {
	_, err := ReadContactsFile("contacts.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ReadContactsFile("empty.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReadContactsXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "phone"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Aisyah"))
	require.NoError(t, f.SetCellStr("Sheet1", "B2", "0123456789"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "Budi"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", 601121234567))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ReadContactsFile("contacts.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "phone"}, table.Columns)
	assert.Equal(t, "0123456789", table.Value(0, 1), "text cells keep leading zeros")
	assert.Equal(t, "601121234567", table.Value(1, 1))
}

func TestSetValuePadsRow(t *testing.T) {
	table := &ContactTable{Columns: []string{"a", "b", "c"}, Rows: [][]string{{"1"}}}
	table.SetValue(0, 2, "x")
	assert.Equal(t, []string{"1", "", "x"}, table.Rows[0])

	table.SetValue(5, 0, "ignored")
	assert.Len(t, table.Rows, 1)
}

func TestWriteContactsRoundTrip(t *testing.T) {
	table := &ContactTable{
		Columns: []string{"name", "phone"},
		Rows:    [][]string{{"Aisyah", "60123456789"}, {"Budi"}},
	}

	var csvBuf bytes.Buffer
	require.NoError(t, WriteContactsCSV(&csvBuf, table))
	assert.Equal(t, "name,phone\nAisyah,60123456789\nBudi,\n", csvBuf.String())

	var xlsxBuf bytes.Buffer
	require.NoError(t, WriteContactsXLSX(&xlsxBuf, table))

	back, err := ReadContactsXLSX(&xlsxBuf)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, back.Columns)
	assert.Equal(t, "60123456789", back.Value(0, 1))
	assert.Equal(t, "Budi", back.Value(1, 0))
}

func TestSampleNumbers(t *testing.T) {
	numbers := []string{"a", "b", "c", "d", "e", "f"}

	sample := SampleNumbers(numbers, 5)
	assert.Len(t, sample, 5)
	seen := map[string]bool{}
	for _, n := range sample {
		assert.Contains(t, numbers, n)
		assert.False(t, seen[n])
		seen[n] = true
	}

	assert.Equal(t, []string{"a", "b"}, SampleNumbers([]string{"a", "b"}, 5))
	assert.Empty(t, SampleNumbers(numbers, 0))
	assert.Empty(t, SampleNumbers(numbers, -1))
}
