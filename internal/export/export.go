// Package export renders salon schedules as Excel workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"salontime/internal/models"
)

const (
	sheetName  = "Schedule"
	headerRow  = 2
	firstRow   = 3
	dateLayout = "Mon 02.01"
)

var statusFill = map[string]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusConfirmed: "#C6EFCE",
	models.StatusCancelled: "#FFC7CE",
	models.StatusCompleted: "#FFFFFF",
	models.StatusNoShow:    "#D9D9D9",
}

// WriteSchedule builds a workbook with one column per day from from to to
// (inclusive). Each column lists that day's bookings by start time as
// "HH:MM-HH:MM service (status)". Bookings outside the range are skipped.
func WriteSchedule(title string, bookings []*models.Booking, from, to time.Time) (*excelize.File, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("export range ends before it starts: %s > %s",
			from.Format(models.DateLayout), to.Format(models.DateLayout))
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	columns := writeDateHeaders(f, from, to)

	byDate := make(map[string][]*models.Booking)
	for _, b := range bookings {
		if _, ok := columns[b.Date]; ok {
			byDate[b.Date] = append(byDate[b.Date], b)
		}
	}

	styles := make(map[string]int, len(statusFill))
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}

	maxRows := 0
	for date, dayBookings := range byDate {
		sort.SliceStable(dayBookings, func(i, j int) bool {
			return dayBookings[i].StartTime < dayBookings[j].StartTime
		})
		col := columns[date]
		for i, b := range dayBookings {
			cell, _ := excelize.CoordinatesToCellName(col, firstRow+i)
			_ = f.SetCellValue(sheetName, cell, CellText(b))
			if style, ok := styles[b.Status]; ok {
				_ = f.SetCellStyle(sheetName, cell, cell, style)
			}
		}
		if len(dayBookings) > maxRows {
			maxRows = len(dayBookings)
		}
	}

	for i := 0; i < maxRows; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, firstRow+i)
		_ = f.SetCellValue(sheetName, cell, i+1)
	}

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s: %s - %s",
		title, from.Format(models.DateLayout), to.Format(models.DateLayout)))
	lastCol, _ := excelize.ColumnNumberToName(len(columns) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.SetColWidth(sheetName, "A", "A", 6)
	if len(columns) > 0 {
		_ = f.SetColWidth(sheetName, "B", lastCol, 28)
	}
	return f, nil
}

// SaveSchedule writes the workbook into dir and returns the file path.
func SaveSchedule(dir, title string, bookings []*models.Booking, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := WriteSchedule(title, bookings, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := fmt.Sprintf("schedule_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

// CellText is the single-line rendering of a booking used in schedule cells.
func CellText(b *models.Booking) string {
	return fmt.Sprintf("%s-%s %s (%s)", b.StartTime, b.EndTime, b.ServiceName, b.Status)
}

func writeDateHeaders(f *excelize.File, from, to time.Time) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	columns := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, headerRow)
		_ = f.SetCellValue(sheetName, cell, d.Format(dateLayout))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		columns[d.Format(models.DateLayout)] = col
		col++
	}
	return columns
}
