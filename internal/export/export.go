package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"receptionist/internal/models"
	"receptionist/internal/timewindow"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Appointments"

var appointmentHeaders = []string{
	"ID", "Customer", "Phone", "Email", "Service", "Start", "End", "Status", "Notes", "Created",
}

// WriteAppointments renders appointments as an xlsx workbook with a title row and one row per appointment.
func WriteAppointments(w io.Writer, title string, appts []*models.Appointment) error {
	f, err := buildWorkbook(title, appts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveAppointments writes the workbook to dir and returns the file path.
func SaveAppointments(dir, businessID string, appts []*models.Appointment, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := buildWorkbook(businessID, appts)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(businessID, now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func FileName(businessID string, now time.Time) string {
	return fmt.Sprintf("appointments_%s_%s.xlsx", businessID, now.Format("2006-01-02"))
}

func buildWorkbook(title string, appts []*models.Appointment) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(appointmentHeaders))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range appointmentHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006"},
	})

	for i, a := range appts {
		row := i + 3
		values := []interface{}{
			a.PublicID(),
			a.CustomerName,
			a.Phone,
			a.Email,
			a.Service,
			timewindow.FormatISO(a.StartTime),
			timewindow.FormatISO(a.EndTime),
			a.Status,
			a.Notes,
			formatCreated(a.CreatedAt),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if a.Status == models.StatusCancelled {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(sheetName, start, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "B", lastCol, 20)
	return f, nil
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
