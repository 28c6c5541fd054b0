// Package export renders turnout responses as spreadsheet workbooks.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/peachstate/voterlens/internal/analytics"
	"github.com/peachstate/voterlens/internal/domain"
)

// Service writes turnout reports to xlsx workbooks: one sheet per breakdown
// dimension plus a metadata sheet.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

var reportHeader = []string{"Dimension Value", "Total Voters", "Voted Count", "Turnout %"}

// WriteWorkbook renders the response and returns the workbook bytes.
func (s *Service) WriteWorkbook(resp *analytics.TurnoutResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	dimensions := make([]string, 0, len(resp.Report))
	for dim := range resp.Report {
		dimensions = append(dimensions, string(dim))
	}
	sort.Strings(dimensions)

	for i, dim := range dimensions {
		sheet := fmt.Sprintf("Turnout by %s", dim)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		if err := writeReportSheet(f, sheet, resp.Report[domain.Dimension(dim)]); err != nil {
			return nil, err
		}
	}

	if err := s.writeMetadataSheet(f, resp, len(dimensions) == 0); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeReportSheet(f *excelize.File, sheet string, report domain.TurnoutReport) error {
	for col, title := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, row := range report.Rows {
		values := []any{row.DimensionValue, row.TotalVoters, row.VotedCount}
		if row.TurnoutPct != nil {
			values = append(values, *row.TurnoutPct)
		} else {
			values = append(values, "")
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}
	return nil
}

func (s *Service) writeMetadataSheet(f *excelize.File, resp *analytics.TurnoutResponse, first bool) error {
	const sheet = "Metadata"
	if first {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create metadata sheet: %w", err)
		}
	}

	rows := [][2]any{
		{"Request ID", resp.Metadata.RequestID},
		{"Generated At", resp.Metadata.GeneratedAt.Format(time.RFC3339)},
		{"Election Date", resp.Metadata.RequestParameters.ElectionDate},
		{"Area Type", resp.Metadata.RequestParameters.Geography.AreaType},
		{"Area Value", resp.Metadata.RequestParameters.Geography.AreaValue},
		{"Exported At", s.now().UTC().Format(time.RFC3339)},
	}
	for _, note := range resp.Metadata.Notes {
		rows = append(rows, [2]any{"Note", note})
	}

	for i, kv := range rows {
		keyCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("metadata cell: %w", err)
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return fmt.Errorf("metadata cell: %w", err)
		}
		if err := f.SetCellValue(sheet, keyCell, kv[0]); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		if err := f.SetCellValue(sheet, valueCell, kv[1]); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	return nil
}
