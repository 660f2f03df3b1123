package excel

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mhxia/finsight/internal/core/domain"
)

// maxRenderedRows keeps one oversized sheet from flooding the table channel.
const maxRenderedRows = 100

var statementKeywords = []struct {
	Type     string
	Keywords []string
}{
	{"利润表", []string{"利润表", "损益表", "综合收益表", "income statement", "profit and loss", "p&l"}},
	{"资产负债表", []string{"资产负债表", "财务状况表", "balance sheet", "statement of financial position"}},
	{"现金流量表", []string{"现金流量表", "cash flow", "statement of cash flows", "现金流"}},
}

var financialCellKeywords = []string{
	"营业收入", "净利润", "营业成本", "资产总计", "负债合计", "经营活动",
}

var cellYearPattern = regexp.MustCompile(`\d{4}`)

// Extractor turns each worksheet of an Excel report into one table entry:
// statement classification by keyword, multi-row header detection, rows
// rendered as " | "-joined lines.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Parse(ctx context.Context, filename string, data io.Reader) (*domain.ParsedReport, error) {
	book, err := excelize.OpenReader(data)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer book.Close()

	parsed := &domain.ParsedReport{}
	for _, sheet := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if emptySheet(rows) {
			continue
		}

		statementType := classifyStatement(sheet, rows)
		table := domain.ExtractedTable{
			SheetName:     sheet,
			Text:          renderSheet(sheet, rows, statementType),
			Year:          sheetYear(sheet, rows),
			IsFinancial:   statementType != "" || hasFinancialCells(rows),
			IsStatement:   statementType != "",
			StatementType: statementType,
			RowCount:      len(rows),
		}
		parsed.Tables = append(parsed.Tables, table)
	}
	return parsed, nil
}

func emptySheet(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return false
			}
		}
	}
	return true
}

// classifyStatement checks the sheet name first, then the sheet name together
// with the title row.
func classifyStatement(sheetName string, rows [][]string) string {
	lowerName := strings.ToLower(sheetName)
	for _, entry := range statementKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lowerName, strings.ToLower(keyword)) {
				return entry.Type
			}
		}
	}

	if len(rows) == 0 {
		return ""
	}
	head := strings.ToLower(sheetName + " " + strings.Join(rows[0], " "))
	for _, entry := range statementKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(head, strings.ToLower(keyword)) {
				return entry.Type
			}
		}
	}
	return ""
}

func hasFinancialCells(rows [][]string) bool {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for _, row := range rows[:limit] {
		for _, cell := range row {
			for _, keyword := range financialCellKeywords {
				if strings.Contains(cell, keyword) {
					return true
				}
			}
		}
	}
	return false
}

func renderSheet(sheetName string, rows [][]string, statementType string) string {
	parts := make([]string, 0, len(rows)+4)
	if statementType != "" {
		parts = append(parts, fmt.Sprintf("【%s】工作表: %s", statementType, sheetName))
	} else {
		parts = append(parts, fmt.Sprintf("工作表: %s", sheetName))
	}
	parts = append(parts, "\n表格内容：")

	width := maxWidth(rows)
	headerRows := detectHeaderRows(rows)
	for _, idx := range headerRows {
		parts = append(parts, joinRow(rows[idx], width))
	}
	parts = append(parts, strings.Repeat("-", 80))

	start := headerRows[len(headerRows)-1] + 1
	shown := 0
	for i := start; i < len(rows) && shown < maxRenderedRows; i++ {
		parts = append(parts, joinRow(rows[i], width))
		shown++
	}
	if len(rows) > maxRenderedRows {
		parts = append(parts, fmt.Sprintf("\n... (共%d行，仅显示前%d行)", len(rows), maxRenderedRows))
	}
	return strings.Join(parts, "\n")
}

// detectHeaderRows finds the label header row (项目/科目/item) and, for
// financial statements, the period row under it (6-digit date codes or
// 年/月/期末/期初 markers). Falls back to the first row.
func detectHeaderRows(rows [][]string) []int {
	if len(rows) == 0 {
		return []int{0}
	}
	if rowHasLabelMarker(rows[0]) {
		if len(rows) > 1 && rowHasPeriodMarker(rows[1]) {
			return []int{0, 1}
		}
		return []int{0}
	}
	if len(rows) > 1 && rowHasLabelMarker(rows[1]) {
		return []int{1}
	}
	return []int{0}
}

func rowHasLabelMarker(row []string) bool {
	for _, cell := range row {
		lower := strings.ToLower(cell)
		if strings.Contains(cell, "项目") || strings.Contains(cell, "科目") || strings.Contains(lower, "item") {
			return true
		}
	}
	return false
}

func rowHasPeriodMarker(row []string) bool {
	for _, cell := range row {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		if len(trimmed) == 6 && isDigits(trimmed) {
			return true
		}
		if strings.ContainsAny(trimmed, "年月日") ||
			strings.Contains(trimmed, "期末") || strings.Contains(trimmed, "期初") {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func maxWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func joinRow(row []string, width int) string {
	cells := make([]string, width)
	for i := 0; i < width; i++ {
		if i < len(row) {
			cells[i] = strings.TrimSpace(row[i])
		}
	}
	return strings.Join(cells, " | ")
}

// sheetYear looks for a plausible report year in the sheet name, then in the
// cells.
func sheetYear(sheetName string, rows [][]string) string {
	if year := plausibleYear(sheetName); year != "" {
		return year
	}
	for _, row := range rows {
		for _, cell := range row {
			if year := plausibleYear(cell); year != "" {
				return year
			}
		}
	}
	return ""
}

func plausibleYear(s string) string {
	for _, match := range cellYearPattern.FindAllString(s, -1) {
		year, err := strconv.Atoi(match)
		if err == nil && year >= 2000 && year <= 2030 {
			return match
		}
	}
	return ""
}
