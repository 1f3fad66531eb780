package repository_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"grievance/models"
	"grievance/schema"
)

// setupTestDB opens an in-memory database initialised with the production schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// every connection to :memory: is a separate database
	testDB.SetMaxOpenConns(1)

	if err := schema.InitializeDatabase(testDB, schema.DriverSQLite); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})
	return testDB
}

var baseTime = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// newComplaint builds a pending complaint with one history entry.
func newComplaint(id string, category models.Category, lat, lng float64, createdAt time.Time) *models.Complaint {
	target := createdAt.Add(72 * time.Hour)
	return &models.Complaint{
		ID:          id,
		Title:       "Pothole",
		Description: "Large pothole near the bus stop",
		Category:    category,
		Location: models.Location{
			Latitude:  lat,
			Longitude: lng,
			Address:   "MG Road",
		},
		Reporter: models.Reporter{UserID: "user-1", Name: "Asha", Phone: "+919800000001"},
		Status:   models.StatusPending,
		StatusHistory: []models.StatusHistoryEntry{
			{Status: models.StatusPending, ChangedAt: createdAt, ChangedBy: "user-1"},
		},
		SLA:       models.SLAInfo{TargetResolutionDate: &target},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Version:   1,
	}
}
