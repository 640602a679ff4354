package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile       = errors.New("uploaded file is empty")
	ErrInvalidWorkbook = errors.New("file is not a valid workbook")
)

// Лист книги (сырые значения ячеек)
type Sheet struct {
	Name string
	Rows [][]string
	Err  error // лист не читается; такой лист пропускается

	file *excelize.File
}

// Hyperlink возвращает ссылку ячейки (индексы с 0) или пустую строку.
func (s *Sheet) Hyperlink(row, col int) string {
	if s.file == nil {
		return ""
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ""
	}
	ok, target, err := s.file.GetCellHyperLink(s.Name, axis)
	if err != nil || !ok {
		return ""
	}
	return target
}

// Открытая книга, листы в порядке файла
type Workbook struct {
	file   *excelize.File
	Sheets []*Sheet
}

// OpenWorkbook читает книгу из памяти. Ошибка листа не делает ошибкой всю книгу.
func OpenWorkbook(data []byte) (*Workbook, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}

	names := f.GetSheetList()
	if len(names) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: no sheets found", ErrInvalidWorkbook)
	}

	wb := &Workbook{file: f}
	for _, name := range names {
		sh := &Sheet{Name: name, file: f}
		// сырые значения: даты приходят серийными числами, суммы без форматирования
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			sh.Err = err
		}
		sh.Rows = rows
		wb.Sheets = append(wb.Sheets, sh)
	}
	return wb, nil
}

func (w *Workbook) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
