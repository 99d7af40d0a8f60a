// Package extract pulls text content out of report attachments. PDF files
// yield a page count and concatenated text; spreadsheets yield their cell
// values as one logical page.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// DocExtractor reads documents from the local staging area.
type DocExtractor struct{}

// NewDocExtractor creates a document extractor.
func NewDocExtractor() *DocExtractor {
	return &DocExtractor{}
}

// PDF returns the page count and plain text of the PDF at path.
func (e *DocExtractor) PDF(path string) (int, string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := r.NumPage()

	reader, err := r.GetPlainText()
	if err != nil {
		return pages, "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return pages, "", fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	logrus.Infof("pdf attachment: %d pages, %d chars of text", pages, len(text))
	return pages, text, nil
}

// Spreadsheet returns all cell values of the workbook's active sheet,
// cells joined by ", " and rows by newlines.
func (e *DocExtractor) Spreadsheet(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer wb.Close()

	sheet := wb.GetSheetName(wb.GetActiveSheetIndex())
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("read spreadsheet rows: %w", err)
	}

	var sb strings.Builder
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(cells, ", "))
	}
	return sb.String(), nil
}
