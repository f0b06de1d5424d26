package report

import (
	"fmt"
	"io"
	"sort"

	"facewatch/internal/dto"
	"facewatch/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	alertsSheet  = "Alerts"
	summarySheet = "Summary"
)

// AlertsHeader is the column layout of the alerts sheet.
var AlertsHeader = []string{
	"Time",
	"Camera ID",
	"Camera",
	"Name",
	"Confidence",
	"Age",
	"Gender",
	"Screenshot",
}

var columnWidths = []float64{20, 10, 18, 18, 12, 8, 10, 60}

// WriteAlerts writes an xlsx workbook with one row per alert and, when stats
// is set, a summary sheet with per-camera and per-name counts.
func WriteAlerts(w io.Writer, events []model.AlertEvent, stats *dto.AlertStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(alertsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(alertsSheet); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, alertsSheet, AlertsHeader, headerStyle); err != nil {
		return err
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(alertsSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, e := range events {
		row := []interface{}{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.CameraID,
			e.CameraName,
			e.FaceName,
			e.Confidence,
			nil,
			nil,
			e.ScreenshotPath,
		}
		if e.Age != nil {
			row[5] = *e.Age
		}
		if e.Gender != nil {
			row[6] = string(*e.Gender)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(alertsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(alertsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if stats != nil {
		if err := writeSummary(f, stats, headerStyle); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, stats *dto.AlertStats, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, summarySheet, []string{"Group", "Key", "Alerts"}, headerStyle); err != nil {
		return err
	}

	rows := [][]interface{}{{"Total", "", stats.Total}}
	for _, k := range sortedKeys(stats.PerCamera) {
		rows = append(rows, []interface{}{"Camera", k, stats.PerCamera[k]})
	}
	for _, k := range sortedKeys(stats.PerFace) {
		rows = append(rows, []interface{}{"Name", k, stats.PerFace[k]})
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
