package interfaces

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	closure "fuelsync/internal/closure/domain"
)

// BuildClosurePDF renders a minimal PDF for a daily closure.
func BuildClosurePDF(record *closure.DailyClosure) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Closure Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Station: %s", record.StationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", record.ClosureDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Shift: %s", record.Shift))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", record.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Version: %d", record.Version))
	pdf.Ln(5)
	if record.ApprovedBy != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Reviewed by %s at %s", record.ApprovedBy, record.ApprovedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total Sales: %.2f", record.TotalSalesAmount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Litres: %.3f", record.TotalLitresSold))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Card: %.2f  UPI: %.2f  Credit: %.2f", record.CardPayments, record.UPIPayments, record.CreditSales))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Expected Cash: %.2f", record.ExpectedCash))
	pdf.Ln(5)
	if record.ActualCash != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Actual Cash: %.2f", *record.ActualCash))
		pdf.Ln(5)
	}
	if record.CashVariance != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Cash Variance: %.2f", *record.CashVariance))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	// Fuel breakdown table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Fuel", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Litres", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Sales", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, fuel := range sortedFuels(record) {
		breakdown := record.FuelBreakdown[fuel]
		pdf.CellFormat(40, 6, fuel, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", breakdown.Litres), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", breakdown.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", breakdown.Count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildClosureXLSX renders a minimal XLSX for a daily closure.
func BuildClosureXLSX(record *closure.DailyClosure) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	fuelSheet := "fuel"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(fuelSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Daily Closure Report")
	_ = f.SetCellValue(summarySheet, "A3", "Station")
	_ = f.SetCellValue(summarySheet, "B3", record.StationID)
	_ = f.SetCellValue(summarySheet, "A4", "Date")
	_ = f.SetCellValue(summarySheet, "B4", record.ClosureDate.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Shift")
	_ = f.SetCellValue(summarySheet, "B5", string(record.Shift))
	_ = f.SetCellValue(summarySheet, "A6", "Status")
	_ = f.SetCellValue(summarySheet, "B6", string(record.Status))
	_ = f.SetCellValue(summarySheet, "A7", "Version")
	_ = f.SetCellValue(summarySheet, "B7", record.Version)
	_ = f.SetCellValue(summarySheet, "A8", "Total Sales")
	_ = f.SetCellValue(summarySheet, "B8", record.TotalSalesAmount)
	_ = f.SetCellValue(summarySheet, "A9", "Total Litres")
	_ = f.SetCellValue(summarySheet, "B9", record.TotalLitresSold)
	_ = f.SetCellValue(summarySheet, "A10", "Card Payments")
	_ = f.SetCellValue(summarySheet, "B10", record.CardPayments)
	_ = f.SetCellValue(summarySheet, "A11", "UPI Payments")
	_ = f.SetCellValue(summarySheet, "B11", record.UPIPayments)
	_ = f.SetCellValue(summarySheet, "A12", "Credit Sales")
	_ = f.SetCellValue(summarySheet, "B12", record.CreditSales)
	_ = f.SetCellValue(summarySheet, "A13", "Expected Cash")
	_ = f.SetCellValue(summarySheet, "B13", record.ExpectedCash)
	if record.ActualCash != nil {
		_ = f.SetCellValue(summarySheet, "A14", "Actual Cash")
		_ = f.SetCellValue(summarySheet, "B14", *record.ActualCash)
	}
	if record.CashVariance != nil {
		_ = f.SetCellValue(summarySheet, "A15", "Cash Variance")
		_ = f.SetCellValue(summarySheet, "B15", *record.CashVariance)
	}

	_ = f.SetCellValue(fuelSheet, "A1", "Fuel")
	_ = f.SetCellValue(fuelSheet, "B1", "Litres")
	_ = f.SetCellValue(fuelSheet, "C1", "Amount")
	_ = f.SetCellValue(fuelSheet, "D1", "Sales")
	for i, fuel := range sortedFuels(record) {
		breakdown := record.FuelBreakdown[fuel]
		row := i + 2
		_ = f.SetCellValue(fuelSheet, fmt.Sprintf("A%d", row), fuel)
		_ = f.SetCellValue(fuelSheet, fmt.Sprintf("B%d", row), breakdown.Litres)
		_ = f.SetCellValue(fuelSheet, fmt.Sprintf("C%d", row), breakdown.Amount)
		_ = f.SetCellValue(fuelSheet, fmt.Sprintf("D%d", row), breakdown.Count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedFuels(record *closure.DailyClosure) []string {
	fuels := make([]string, 0, len(record.FuelBreakdown))
	for fuel := range record.FuelBreakdown {
		fuels = append(fuels, fuel)
	}
	sort.Strings(fuels)
	return fuels
}
