package report

import (
	"bytes"
	"testing"
	"time"

	"facewatch/internal/dto"
	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteAlerts(t *testing.T) {
	age := 40
	gender := model.GenderFemale
	events := []model.AlertEvent{
		{CameraID: 1, CameraName: "Lobby", FaceName: "Alice", Confidence: 0.82,
			Timestamp: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC), Age: &age, Gender: &gender,
			ScreenshotPath: "/shots/a.jpg"},
		{CameraID: 3, CameraName: "Gate", FaceName: "Bob", Confidence: 0.91,
			Timestamp: time.Date(2026, 2, 3, 4, 0, 0, 0, time.UTC)},
	}
	stats := &dto.AlertStats{Total: 2, PerCamera: map[string]int{"Lobby": 1, "Gate": 1}, PerFace: map[string]int{"Alice": 1, "Bob": 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteAlerts(&buf, events, stats))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{alertsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(alertsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, AlertsHeader, rows[0])
	assert.Equal(t, []string{"2026-02-03 04:05:06", "1", "Lobby", "Alice", "0.82", "40", "Female", "/shots/a.jpg"}, rows[1])
	assert.Equal(t, "Bob", rows[2][3])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total", "", "2"}, summary[1])
	assert.Equal(t, []string{"Camera", "Gate", "1"}, summary[2])
}

func TestWriteAlerts_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAlerts(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(alertsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
