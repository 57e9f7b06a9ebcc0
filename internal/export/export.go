package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Бронирования"
	summarySheet  = "Итоги"
)

var bookingHeaders = []string{
	"ID", "Дата", "Время", "Кампус", "Родитель", "Телефон", "Статус", "Напоминание", "Создано",
}

// BookingSource lists bookings scheduled within [from, to).
type BookingSource interface {
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error)
}

// Exporter writes tour bookings to XLSX files for staff.
type Exporter struct {
	source BookingSource
	cfg    *config.Config
	dir    string
	loc    *time.Location
	logger *zerolog.Logger
}

func NewExporter(source BookingSource, cfg *config.Config, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Exporter{
		source: source,
		cfg:    cfg,
		dir:    cfg.Exports.Path,
		loc:    cfg.App.Location(),
		logger: logger,
	}
}

// ExportBookings writes bookings whose tours fall on local days from..to
// inclusive and returns the file path.
func (e *Exporter) ExportBookings(ctx context.Context, from, to time.Time) (string, error) {
	if to.Before(from) {
		return "", fmt.Errorf("export period ends before it starts")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	start := dayStart(from, e.loc)
	end := dayStart(to, e.loc).AddDate(0, 0, 1)

	bookings, err := e.source.ListBookings(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// Заголовок периода
	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Период: %s - %s",
		start.Format("02.01.2006"), end.AddDate(0, 0, -1).Format("02.01.2006")))
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	e.writeHeaders(f, bookingsSheet, 2, bookingHeaders)
	e.writeBookings(f, bookings)

	_ = f.SetColWidth(bookingsSheet, "A", "A", 8)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 12)
	_ = f.SetColWidth(bookingsSheet, "D", "I", 22)

	if err := e.writeSummary(f, bookings); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("tours_%s_to_%s.xlsx", start.Format("2006-01-02"), end.AddDate(0, 0, -1).Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeHeaders(f *excelize.File, sheet string, row int, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}

func (e *Exporter) writeBookings(f *excelize.File, bookings []*models.Booking) {
	for i, b := range bookings {
		row := i + 3
		local := b.ScheduledAt.In(e.loc)
		reminder := ""
		if b.ReminderSentAt != nil {
			reminder = b.ReminderSentAt.In(e.loc).Format("02.01.2006 15:04")
		}
		values := []interface{}{
			b.ID,
			local.Format("02.01.2006"),
			local.Format("15:04"),
			e.campusName(b.Campus),
			b.ParentName,
			b.Phone,
			b.Status,
			reminder,
			b.CreatedAt.In(e.loc).Format("02.01.2006 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
		if color := statusColor(b.Status); color != "" {
			style, _ := f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			})
			cell, _ := excelize.CoordinatesToCellName(7, row)
			_ = f.SetCellStyle(bookingsSheet, cell, cell, style)
		}
	}
}

func (e *Exporter) writeSummary(f *excelize.File, bookings []*models.Booking) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating summary sheet: %w", err)
	}
	e.writeHeaders(f, summarySheet, 1, []string{"Статус", "Количество"})

	counts := make(map[string]int)
	for _, b := range bookings {
		counts[b.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	row := 2
	for _, s := range statuses {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), s)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), counts[s])
		row++
	}
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Всего")
	_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), len(bookings))
	_ = f.SetColWidth(summarySheet, "A", "B", 18)
	return nil
}

func (e *Exporter) campusName(id string) string {
	if c, ok := e.cfg.Campus(id); ok {
		return c.Name(models.LocaleRU)
	}
	return id
}

func statusColor(status string) string {
	switch status {
	case models.BookingAttended:
		return "#C6EFCE"
	case models.BookingNoShow, models.BookingCancelled:
		return "#FFC7CE"
	case models.BookingConfirmed:
		return "#FFEB9C"
	}
	return ""
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
