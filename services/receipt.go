package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// GenerateReceipt creates a PDF payment receipt and returns its path.
// The caller removes the file after use.
func GenerateReceipt(studentName, courseName, orderID string, amount float64) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Payment Receipt")
	pdf.Ln(14)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, fmt.Sprintf("Student: %s", studentName))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Course: %s", courseName))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Order: %s", orderID))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Amount: INR %.2f", amount))
	pdf.Ln(10)
	pdf.Cell(40, 10, fmt.Sprintf("Date: %s", time.Now().Format("02 Jan 2006")))
	pdf.Ln(14)
	pdf.Cell(40, 10, "Thank you for enrolling with us.")

	fileName := filepath.Join(os.TempDir(), fmt.Sprintf("receipt_%s.pdf", orderID))
	if err := pdf.OutputFileAndClose(fileName); err != nil {
		return "", fmt.Errorf("error generating receipt PDF: %w", err)
	}
	return fileName, nil
}
