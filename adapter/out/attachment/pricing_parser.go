// Package attachment decodes tabular email attachments and shared
// spreadsheet links into rows for structured price lookup.
package attachment

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"pricing_server/core/port/out"
)

// Parser implements out.AttachmentParser for xlsx/xls/csv payloads.
type Parser struct{}

var _ out.AttachmentParser = (*Parser)(nil)

// NewParser creates the parser.
func NewParser() *Parser { return &Parser{} }

// ParseTabular decodes an attachment body into rows. Legacy binary .xls is
// accepted only when the file is actually OOXML under a wrong extension;
// genuine BIFF files come back as an error and the caller falls through to
// generic text handling.
func (Parser) ParseTabular(data []byte, ext string) ([][]string, error) {
	switch strings.ToLower(ext) {
	case "xlsx", "xls":
		return parseWorkbook(data)
	case "csv":
		return parseCSV(data)
	default:
		return nil, fmt.Errorf("unsupported tabular format: %s", ext)
	}
}

func parseWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var rows [][]string
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		rows = append(rows, sheetRows...)
	}
	return rows, nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}
