// Package report renders grading results into downloadable spreadsheets.
package report

import (
	"fmt"
	"mime"

	"github.com/bandup/session-service/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet   = "Summary"
	ResponsesSheet = "Responses"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ResultToExcel writes the result as a workbook with a summary sheet and one row per response.
func ResultToExcel(result *models.GradingResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("no result to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the summary
	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Test ID", result.TestID},
		{"Total Score", result.TotalScore},
		{"Band Score", result.BandScore},
		{"Responses", len(result.Responses)},
	}
	if err := writeRows(f, SummarySheet, 1, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(ResponsesSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []interface{}{"Question", "Answer", "Correct Answer", "Result"}
	rows := make([][]interface{}, 0, len(result.Responses)+1)
	rows = append(rows, headers)
	for _, r := range result.Responses {
		verdict := "Incorrect"
		if r.IsCorrect {
			verdict = "Correct"
		}
		rows = append(rows, []interface{}{r.QuestionNumber, r.AnswerContent, r.CorrectAnswer, verdict})
	}
	if err := writeRows(f, ResponsesSheet, 1, rows); err != nil {
		return nil, err
	}

	if err := f.SetPanes(ResponsesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name offered for a result export.
func Filename(result *models.GradingResult) string {
	if result == nil || result.TestID == "" {
		return "result.xlsx"
	}
	return fmt.Sprintf("result-%s.xlsx", result.TestID)
}

// ContentDisposition is the attachment header for a downloaded result workbook.
func ContentDisposition(result *models.GradingResult) string {
	v := mime.FormatMediaType("attachment", map[string]string{"filename": Filename(result)})
	if v == "" {
		return "attachment"
	}
	return v
}

func writeRows(f *excelize.File, sheet string, startRow int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, startRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", startRow+i, sheet, err)
		}
	}
	return nil
}
