package history

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "历史记录"

var exportHeader = []string{"时间", "题目", "题目类型", "学科", "知识点", "难度", "前置知识", "答案", "解题步骤", "总结"}

// All returns every record of a user, newest first.
func All(ctx context.Context, store Store, userID string) ([]Record, error) {
	var out []Record
	for page := 1; ; page++ {
		p, err := store.List(ctx, userID, page, MaxLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Records...)
		if page >= p.TotalPages() || len(p.Records) == 0 {
			return out, nil
		}
	}
}

// WriteXLSX writes records as a single-sheet spreadsheet, one row each.
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, title := range exportHeader {
		if err := setCell(f, i+1, 1, title); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, rec := range records {
		row := []string{
			rec.CreatedAt.UTC().Format(time.DateTime),
			rec.Question,
			string(rec.ParseResult.Type),
			rec.ParseResult.Subject,
			strings.Join(rec.ParseResult.KnowledgePoints, "、"),
			string(rec.ParseResult.Difficulty),
			strings.Join(rec.ParseResult.Prerequisites, "、"),
			rec.Solution.Answer,
			numberedSteps(rec.Solution.Steps),
			rec.Solution.Summary,
		}
		for col, v := range row {
			if err := setCell(f, col+1, i+2, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 20); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "B", "B", 60); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(exportSheet, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}

func numberedSteps(steps []string) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(lines, "\n")
}
