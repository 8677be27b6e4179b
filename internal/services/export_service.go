package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

const resultsSheetName = "Results"

type exportService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	results   ResultsService
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, results ResultsService) ExportService {
	return &exportService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		results:   results,
	}
}

// ExportTestResults renders the per-member result roster as an xlsx workbook.
// Rows mirror what ListTestResults returns, so the spreadsheet and the API
// never disagree.
func (s *exportService) ExportTestResults(ctx context.Context, testID uint, userID string, isAdmin bool) ([]byte, string, error) {
	if !isAdmin {
		return nil, "", NewPermissionError(userID, testID, "test", "export_results", "insufficient permissions")
	}

	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrTestNotFound
		}
		return nil, "", fmt.Errorf("failed to get test: %w", err)
	}

	rows, err := s.results.ListTestResults(ctx, testID, userID, isAdmin)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	f.SetSheetName(f.GetSheetName(0), resultsSheetName)

	headers := []string{
		"Member ID", "Name", "Email", "Attempt ID", "Status",
		"Started At", "Submitted At", "Score", "Graded Points", "Total Points",
		"Grading Complete", "Tab Switches", "Time Off Page (s)",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(resultsSheetName, cell, h); err != nil {
			return nil, "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(resultsSheetName, "A1", lastCell, headerStyle)
	}

	for rowIdx, row := range rows {
		values := []interface{}{
			row.MemberID,
			row.MemberName,
			row.MemberEmail,
			row.AttemptID,
			string(row.Status),
			formatExportTime(&row.StartedAt),
			formatExportTime(row.SubmittedAt),
			exportScore(row.GradeEarned),
			row.GradedPoints,
			row.TotalPoints,
			row.GradingComplete,
			row.TabSwitchCount,
			row.TimeOffPageSeconds,
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, "", fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(resultsSheetName, cell, value); err != nil {
				return nil, "", fmt.Errorf("failed to write row %d: %w", rowIdx+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("test_%d_results_%s.xlsx", test.ID, time.Now().UTC().Format("20060102_150405"))

	s.logger.Info("Exported test results",
		"test_id", testID,
		"rows", len(rows),
		"filename", filename)

	return buf.Bytes(), filename, nil
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func exportScore(grade *float64) interface{} {
	if grade == nil {
		return ""
	}
	return *grade
}
