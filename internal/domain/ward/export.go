package ward

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	bedsSheet    = "Beds"
	summarySheet = "Summary"
)

var bedExportHeader = []string{
	"Ward", "Department", "Room", "Room Type", "Bed", "Status", "Occupant Patient ID", "Occupied Since",
}

var bedExportWidths = []float64{24, 20, 8, 14, 8, 14, 38, 20}

// ExportBedStatus renders the GetBedStatus result as an xlsx workbook with a
// Beds sheet and a Summary sheet.
func (s *Service) ExportBedStatus(ctx context.Context, filter BedFilter) ([]byte, error) {
	report, err := s.GetBedStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	return renderBedReport(report, s.now())
}

func renderBedReport(report *BedStatusReport, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", bedsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, bedsSheet, 1, toCells(bedExportHeader)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(bedExportHeader), 1)
	if err := f.SetCellStyle(bedsSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}
	for i, w := range bedExportWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(bedsSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, b := range report.Beds {
		occupant, since := "", ""
		if b.OccupantPatientID != nil {
			occupant = b.OccupantPatientID.String()
		}
		if b.OccupancyStartDate != nil {
			since = b.OccupancyStartDate.UTC().Format(time.RFC3339)
		}
		row := []any{
			b.Room.Ward.WardName, b.Room.Ward.Department,
			b.Room.RoomNumber, string(b.Room.RoomType),
			b.BedNumber, string(b.Status), occupant, since,
		}
		if err := writeRow(f, bedsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	sum := report.Summary
	summary := [][]any{
		{"Status", "Beds"},
		{"Total", sum.Total},
		{string(BedAvailable), sum.Available},
		{string(BedOccupied), sum.Occupied},
		{string(BedReserved), sum.Reserved},
		{string(BedCleaning), sum.Cleaning},
		{string(BedMaintenance), sum.Maintenance},
		{},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
