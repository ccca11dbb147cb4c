package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"enrollment-module/db"
)

var exportHeaders = []string{
	"Payment ID", "Order ID", "Student", "Course", "Batch Type",
	"Amount", "Currency", "Status", "Refund Owed", "Paid At",
}

// ExportPayments writes all payments as an Excel sheet to w, newest first.
func ExportPayments(ctx context.Context, w io.Writer) error {
	rows, err := db.DB.QueryContext(ctx, `
		SELECT p.id, COALESCE(p.order_id, ''), s.name,
		       c.language, c.level, e.batch_type,
		       p.amount, p.currency, p.status, p.refund_owed, p.paid_at
		FROM payments p
		JOIN students s ON s.id = p.student_id
		JOIN enrollments e ON e.id = p.enrollment_id
		JOIN courses c ON c.id = e.course_id
		ORDER BY p.created_at DESC`)
	if err != nil {
		return fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Payments"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	rowNum := 2
	for rows.Next() {
		var (
			id                                int
			orderID, student, language, level string
			batchType, currency, status       string
			amount                            float64
			refundOwed                        bool
			paidAt                            *time.Time
		)
		if err := rows.Scan(&id, &orderID, &student, &language, &level, &batchType,
			&amount, &currency, &status, &refundOwed, &paidAt); err != nil {
			return fmt.Errorf("failed to scan payment row: %w", err)
		}

		paid := ""
		if paidAt != nil {
			paid = paidAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			id, orderID, student, language + " " + level, batchType,
			amount, currency, status, strconv.FormatBool(refundOwed), paid,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
			f.SetCellValue(sheet, cell, v)
		}
		rowNum++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed reading payments: %w", err)
	}

	return f.Write(w)
}
