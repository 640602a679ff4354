package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Лист тестовой книги: строки и гиперссылки по адресам ячеек
type SheetData struct {
	Name  string
	Rows  [][]any
	Links map[string]string
}

// BuildWorkbook собирает xlsx в памяти. Листы идут в заданном порядке.
func BuildWorkbook(t testing.TB, sheets ...SheetData) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sh.Name))
		} else {
			_, err := f.NewSheet(sh.Name)
			require.NoError(t, err)
		}
		for r, row := range sh.Rows {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(sh.Name, axis, &row))
		}
		for axis, link := range sh.Links {
			require.NoError(t, f.SetCellHyperLink(sh.Name, axis, link, "External"))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
