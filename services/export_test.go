package services

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"namaste-icd-mapper/models"
)

var exportRecords = []models.FeedbackRecord{
	{ID: "FB-0001", Timestamp: 1700000000, NamasteCode: "A-1", SuggestedICDCode: "1D01", Accepted: true},
	{ID: "FB-0002", Timestamp: 1700000100, NamasteCode: "A-2", SuggestedICDCode: "DA22", CorrectICDCode: strPtr("DA23"), Notes: strPtr("closer match")},
	{ID: "FB-0003", Timestamp: 1700000200, NamasteCode: "A-1", SuggestedICDCode: "1D01", Accepted: true},
}

func TestSummarizeFeedback(t *testing.T) {
	s := SummarizeFeedback(exportRecords)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Accepted)
	assert.Equal(t, 1, s.Rejected)
	assert.InDelta(t, 2.0/3.0, s.AcceptanceRate, 1e-9)
	require.Len(t, s.ByCode, 2)
	assert.Equal(t, CodeCount{Code: "A-1", Total: 2, Accepted: 2}, s.ByCode[0])
	assert.Equal(t, CodeCount{Code: "A-2", Total: 1, Accepted: 0}, s.ByCode[1])

	empty := SummarizeFeedback(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Zero(t, empty.AcceptanceRate)
	assert.NotNil(t, empty.ByCode)
}

func TestExportFeedbackExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.xlsx")

	resp, err := ExportFeedbackExcel(exportRecords, path)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.RecordCount)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{feedbackSheetName, summarySheetName}, f.GetSheetList())

	rows, err := f.GetRows(feedbackSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Doctor ID", rows[0][7])
	assert.Equal(t, "FB-0002", rows[2][0])
	assert.Equal(t, "2023-11-14 22:15:00", rows[2][1])
	assert.Equal(t, "DA23", rows[2][5])
	assert.Equal(t, "closer match", rows[2][6])
}

func TestWriteFeedbackWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFeedbackWorkbook(&buf, exportRecords))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(summarySheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "Total Records", rows[1][0])
	assert.Equal(t, "3", rows[1][1])
}
