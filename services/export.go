package services

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/models"
)

const (
	feedbackSheetName = "Feedback"
	summarySheetName  = "Summary"
)

// ExportResponse describes a finished feedback export.
type ExportResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	RecordCount int    `json:"record_count"`
}

// CodeCount is the number of feedback records for one source code.
type CodeCount struct {
	Code     string `json:"code"`
	Total    int    `json:"total"`
	Accepted int    `json:"accepted"`
}

type FeedbackSummary struct {
	Total          int         `json:"total"`
	Accepted       int         `json:"accepted"`
	Rejected       int         `json:"rejected"`
	AcceptanceRate float64     `json:"acceptance_rate"`
	ByCode         []CodeCount `json:"by_code"`
}

// SummarizeFeedback aggregates acceptance per source code. ByCode is ordered
// by total descending, then code.
func SummarizeFeedback(records []models.FeedbackRecord) FeedbackSummary {
	summary := FeedbackSummary{Total: len(records), ByCode: []CodeCount{}}
	counts := make(map[string]*CodeCount)

	for _, rec := range records {
		cc, ok := counts[rec.NamasteCode]
		if !ok {
			cc = &CodeCount{Code: rec.NamasteCode}
			counts[rec.NamasteCode] = cc
		}
		cc.Total++
		if rec.Accepted {
			cc.Accepted++
			summary.Accepted++
		}
	}
	summary.Rejected = summary.Total - summary.Accepted
	if summary.Total > 0 {
		summary.AcceptanceRate = float64(summary.Accepted) / float64(summary.Total)
	}

	for _, cc := range counts {
		summary.ByCode = append(summary.ByCode, *cc)
	}
	sort.Slice(summary.ByCode, func(i, j int) bool {
		if summary.ByCode[i].Total != summary.ByCode[j].Total {
			return summary.ByCode[i].Total > summary.ByCode[j].Total
		}
		return summary.ByCode[i].Code < summary.ByCode[j].Code
	})
	return summary
}

func buildFeedbackWorkbook(records []models.FeedbackRecord) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(feedbackSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []interface{}{
		"ID", "Timestamp", "NAMASTE Code", "Suggested ICD Code", "Accepted",
		"Correct ICD Code", "Notes", "Doctor ID",
	}
	if err := f.SetSheetRow(feedbackSheetName, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.ID,
			feedbackTime(rec.Timestamp).Format("2006-01-02 15:04:05"),
			rec.NamasteCode,
			rec.SuggestedICDCode,
			rec.Accepted,
			deref(rec.CorrectICDCode),
			deref(rec.Notes),
			deref(rec.DoctorID),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(feedbackSheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	f.SetColWidth(feedbackSheetName, "A", "H", 18)

	if _, err := f.NewSheet(summarySheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summary := SummarizeFeedback(records)
	summaryData := [][]interface{}{
		{"Export Date", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Total Records", summary.Total},
		{"Accepted", summary.Accepted},
		{"Rejected", summary.Rejected},
		{"Acceptance Rate", fmt.Sprintf("%.2f", summary.AcceptanceRate)},
		{"", ""},
		{"NAMASTE Code", "Total", "Accepted"},
	}
	for _, cc := range summary.ByCode {
		summaryData = append(summaryData, []interface{}{cc.Code, cc.Total, cc.Accepted})
	}

	for i, row := range summaryData {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	return f, nil
}

// WriteFeedbackWorkbook streams an xlsx export of records to w.
func WriteFeedbackWorkbook(w io.Writer, records []models.FeedbackRecord) error {
	f, err := buildFeedbackWorkbook(records)
	if err != nil {
		return err
	}
	defer closeWorkbook(f)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// ExportFeedbackExcel saves an xlsx export of records at path.
func ExportFeedbackExcel(records []models.FeedbackRecord, path string) (*ExportResponse, error) {
	f, err := buildFeedbackWorkbook(records)
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f)

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save Excel file: %w", err)
	}

	return &ExportResponse{
		Success:     true,
		Message:     "Excel export generated successfully",
		Path:        path,
		RecordCount: len(records),
	}, nil
}

func closeWorkbook(f *excelize.File) {
	if err := f.Close(); err != nil {
		logger.Warn("Error closing Excel file", "error", err)
	}
}

func feedbackTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
