// Package schema provides startup validation of required DB columns to prevent schema-code mismatch.
package schema

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// RequiredColumn defines a required column for a table.
type RequiredColumn struct {
	Table  string
	Column string
}

// DefaultRequiredColumns returns the columns required for optimistic
// concurrency and escalation to work. If any are missing, the server
// should not start.
var DefaultRequiredColumns = []RequiredColumn{
	{Table: tableComplaints, Column: "version"},
	{Table: tableComplaints, Column: "sla_target_at"},
	{Table: tableComplaints, Column: "escalation_level"},
	{Table: tableComplaintStatusHistory, Column: "seq"},
	{Table: tableComplaintEscalations, Column: "level"},
	{Table: tableComplaintSequences, Column: "last_value"},
}

// ValidateRequiredColumns checks that all required columns exist and lists every missing one.
func ValidateRequiredColumns(db *sql.DB, driver string, required []RequiredColumn) error {
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}
	var missing []string
	for _, rc := range required {
		exists, err := columnExists(db, driver, rc.Table, rc.Column)
		if err != nil {
			return fmt.Errorf("failed to check column %s.%s: %w", rc.Table, rc.Column, err)
		}
		if !exists {
			missing = append(missing, rc.Table+"."+rc.Column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns (run migrations to fix): %s", strings.Join(missing, ", "))
	}
	log.Println("[SCHEMA] Required columns verified")
	return nil
}

func columnExists(db *sql.DB, driver, table, column string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`
	if driver == DriverSQLite {
		query = `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
	}
	if err := db.QueryRow(query, table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
