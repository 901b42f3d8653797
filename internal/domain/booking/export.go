package booking

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Bookings"

var ExportHeader = []string{
	"Booking ID",
	"Type",
	"Status",
	"Date",
	"Start",
	"End",
	"Customer Email",
	"Customer Name",
	"Total",
	"Platform Fee",
	"Currency",
	"Checkout Session",
	"Cancel Reason",
	"Created At",
}

// ExportXLSX renders bookings as a workbook. Times are shown in loc.
func ExportXLSX(rows []Booking, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &ExportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, b := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := exportRow(b, loc)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 38)
	_ = f.SetColWidth(exportSheet, "G", "H", 28)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(b Booking, loc *time.Location) []interface{} {
	var email, name, session string
	if b.Customer != nil {
		email, name = b.Customer.Email, b.Customer.Name
	}
	if b.CheckoutSessionID != nil {
		session = *b.CheckoutSessionID
	}
	return []interface{}{
		b.ID,
		string(b.Type),
		string(b.Status),
		b.Date,
		clock(b.StartTime, loc),
		clock(b.EndTime, loc),
		email,
		name,
		centsToUnits(b.TotalCents),
		centsToUnits(b.PlatformFeeCents),
		b.Currency,
		session,
		b.CancelReason,
		b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("15:04")
}

func centsToUnits(c int64) float64 {
	return float64(c) / 100
}
