package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/watertrack/complaints-api/models"
)

func exportFixtures() []models.Complaint {
	created := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	resolved := time.Date(2024, 1, 2, 14, 45, 0, 0, time.UTC)
	rating := 5
	staff := models.User{Username: "kwesi", Role: models.RoleStaff}

	return []models.Complaint{
		{
			ComplaintCode:  "WTR-2024-00001",
			Title:          "Pipe burst",
			Category:       models.CategoryLeak,
			Priority:       models.PriorityHigh,
			Status:         models.StatusResolved,
			Customer:       models.User{Username: "ama", Role: models.RoleCustomer},
			AssignedTo:     &staff,
			Address:        "12 Harbour Road",
			CreatedAt:      created,
			ResolvedAt:     &resolved,
			CustomerRating: &rating,
		},
		{
			ComplaintCode: "WTR-2024-00002",
			Title:         "No water since Monday",
			Category:      models.CategoryNoWater,
			Priority:      models.PriorityMedium,
			Status:        models.StatusSubmitted,
			Customer:      models.User{Username: "afi", Role: models.RoleCustomer},
			Address:       "3 Hill Street",
			CreatedAt:     created,
		},
	}
}

func TestWriteComplaintsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComplaintsCSV(&buf, exportFixtures()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows

	assert.Equal(t, exportHeader, records[0])

	resolved := records[1]
	assert.Equal(t, "WTR-2024-00001", resolved[0])
	assert.Equal(t, "Water Leak", resolved[2])
	assert.Equal(t, "High", resolved[3])
	assert.Equal(t, "Resolved", resolved[4])
	assert.Equal(t, "ama", resolved[5])
	assert.Equal(t, "kwesi", resolved[6])
	assert.Equal(t, "2024-01-01 08:30", resolved[8])
	assert.Equal(t, "2024-01-02 14:45", resolved[9])
	assert.Equal(t, "30.25", resolved[10])
	assert.Equal(t, "5", resolved[11])

	open := records[2]
	assert.Equal(t, "Unassigned", open[6])
	assert.Equal(t, "N/A", open[9])
	assert.Equal(t, "N/A", open[10])
	assert.Equal(t, "N/A", open[11])
}

func TestWriteComplaintsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComplaintsCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, exportHeader, records[0])
}

func TestBuildComplaintsXLSX(t *testing.T) {
	payload, err := BuildComplaintsXLSX(exportFixtures())
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Complaints")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "WTR-2024-00001", rows[1][0])
	assert.Equal(t, "Unassigned", rows[2][6])
}
