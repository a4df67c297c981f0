// Package export renders a single account as a downloadable document.
package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"account-service/internal/domain"
)

const (
	PDFContentType   = "application/pdf"
	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	excelSheet = "User Data"
)

// PDFFileName and ExcelFileName name the attachment offered to the client.
func PDFFileName(id int64) string   { return fmt.Sprintf("user_%d.pdf", id) }
func ExcelFileName(id int64) string { return fmt.Sprintf("user_%d.xlsx", id) }

// WriteUserPDF writes a one page profile of u.
func WriteUserPDF(w io.Writer, u domain.User) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("User Profile", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "U", 18)
	pdf.CellFormat(0, 10, "User Profile", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Name: " + u.FullName(),
		"Email: " + u.Email,
		"Mobile: " + u.MobileNumber,
		"Role: " + string(u.Role),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

type excelColumn struct {
	header string
	width  float64
}

var excelColumns = []excelColumn{
	{"ID", 10},
	{"First Name", 20},
	{"Last Name", 20},
	{"Email", 30},
	{"Mobile Number", 20},
	{"Role", 10},
	{"Status", 10},
}

// WriteUserExcel writes a workbook with a header row and a single data row for u.
func WriteUserExcel(w io.Writer, u domain.User) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(excelColumns))
	for i, col := range excelColumns {
		header[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(excelSheet, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := []any{
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		u.MobileNumber,
		string(u.Role),
		u.StatusLabel(),
	}
	if err := f.SetSheetRow(excelSheet, "A2", &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	return nil
}
