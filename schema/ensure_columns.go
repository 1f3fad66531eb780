package schema

import (
	"database/sql"
	"fmt"
	"log"
)

// legacyComplaintColumns are columns older complaints tables may lack.
// Rows created before they existed get NULL/defaults, which the
// escalation scan then initialises.
var legacyComplaintColumns = []struct {
	column string
	mysql  string
	sqlite string
}{
	{"version", "BIGINT NOT NULL DEFAULT 1", "INTEGER NOT NULL DEFAULT 1"},
	{"sla_target_at", "DATETIME(6) NULL", "DATETIME NULL"},
	{"is_overdue", "BOOLEAN NOT NULL DEFAULT FALSE", "BOOLEAN NOT NULL DEFAULT 0"},
	{"escalation_level", "INT NOT NULL DEFAULT 0", "INTEGER NOT NULL DEFAULT 0"},
	{"duplicate_override", "BOOLEAN NOT NULL DEFAULT FALSE", "BOOLEAN NOT NULL DEFAULT 0"},
}

// EnsureComplaintColumns adds only missing columns to complaints. Does not
// drop or recreate the table; does not remove existing data.
func EnsureComplaintColumns(db *sql.DB, driver string) error {
	for _, c := range legacyComplaintColumns {
		spec := c.mysql
		if driver == DriverSQLite {
			spec = c.sqlite
		}
		if err := ensureColumn(db, driver, tableComplaints, c.column, spec); err != nil {
			return err
		}
	}
	log.Println("[SCHEMA] Schema check passed")
	return nil
}

func tableExists(db *sql.DB, driver, table string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`
	if driver == DriverSQLite {
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func ensureColumn(db *sql.DB, driver, table, column, spec string) error {
	exists, err := columnExists(db, driver, table, column)
	if err != nil {
		return fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}
	// Neither dialect supports ADD COLUMN IF NOT EXISTS; we checked above so safe to add
	query := "ALTER TABLE " + table + " ADD COLUMN " + column + " " + spec
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	log.Printf("[SCHEMA] Added missing column: %s.%s", table, column)
	return nil
}
