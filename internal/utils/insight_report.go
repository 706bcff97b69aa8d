package utils

import (
	"bytes"
	"fmt"
	"time"

	"datalens/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	insightsSheet = "Insights"
	infoSheet     = "Info"
	timeLayout    = "2006-01-02 15:04:05"
)

// BuildInsightReport renders a dataset's insights as an xlsx workbook with an
// "Insights" sheet (one row per insight) and an "Info" sheet.
func BuildInsightReport(dataset *models.Dataset, insights []models.Insight, now time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(insightsSheet)
	if err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []interface{}{"Type", "Title", "Content", "Created At"}
	if err := f.SetSheetRow(insightsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(insightsSheet, "A1", "D1", style)
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}

	for i, insight := range insights {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			insight.InsightType,
			insight.Title,
			insight.Content,
			insight.CreatedAt.UTC().Format(timeLayout),
		}
		if err := f.SetSheetRow(insightsSheet, cell, &values); err != nil {
			return nil, err
		}
		_ = f.SetCellStyle(insightsSheet, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), wrap)
	}

	_ = f.SetColWidth(insightsSheet, "A", "B", 22)
	_ = f.SetColWidth(insightsSheet, "C", "C", 100)
	_ = f.SetColWidth(insightsSheet, "D", "D", 22)

	if err := writeInfoSheet(f, dataset, len(insights), now); err != nil {
		return nil, err
	}

	f.SetActiveSheet(index)
	return f.WriteToBuffer()
}

func writeInfoSheet(f *excelize.File, dataset *models.Dataset, insightCount int, now time.Time) error {
	if _, err := f.NewSheet(infoSheet); err != nil {
		return err
	}

	rowCount := "-"
	if dataset.RowCount != nil {
		rowCount = fmt.Sprintf("%d", *dataset.RowCount)
	}
	rows := [][]interface{}{
		{"Dataset", dataset.Name},
		{"Dataset ID", dataset.ID.String()},
		{"File Type", dataset.FileType},
		{"Status", dataset.Status},
		{"Rows", rowCount},
		{"Insights", insightCount},
		{"Report Generated", now.UTC().Format(timeLayout)},
	}
	for i, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(infoSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetColWidth(infoSheet, "A", "B", 24)
}

// ReportFileName is the download name for a dataset's insight report.
func ReportFileName(dataset *models.Dataset, now time.Time) string {
	return fmt.Sprintf("insights_%s_%s.xlsx", dataset.ID.String()[:8], now.UTC().Format("20060102_150405"))
}
