// Package schema: safe database initialization. Create only missing tables, never drop or overwrite.

package schema

import (
	"database/sql"
	"fmt"
	"log"
)

// Supported driver names
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

const (
	tableComplaints             = "complaints"
	tableComplaintStatusHistory = "complaint_status_history"
	tableComplaintEscalations   = "complaint_escalations"
	tableComplaintSequences     = "complaint_sequences"
	tableAdmins                 = "admins"
	tableAuditLog               = "audit_log"
	tableNotificationLog        = "notification_log"
	mysqlTableOptions           = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"
)

// tableOrder is the creation order; children follow their parents
var tableOrder = []string{
	tableComplaints,
	tableComplaintStatusHistory,
	tableComplaintEscalations,
	tableComplaintSequences,
	tableAdmins,
	tableAuditLog,
	tableNotificationLog,
}

// InitializeDatabase ensures every table exists, then adds any columns
// missing from older complaints tables. It never drops or rewrites data.
func InitializeDatabase(db *sql.DB, driver string) error {
	ddl, err := tableDDL(driver)
	if err != nil {
		return err
	}

	for _, table := range tableOrder {
		exists, err := tableExists(db, driver, table)
		if err != nil {
			return fmt.Errorf("failed to check if table %s exists: %w", table, err)
		}
		if exists {
			log.Printf("[SCHEMA] %s table exists", table)
			continue
		}
		for _, stmt := range ddl[table] {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create table %s: %w", table, err)
			}
		}
		log.Printf("[SCHEMA] created %s table", table)
	}

	return EnsureComplaintColumns(db, driver)
}

func tableDDL(driver string) (map[string][]string, error) {
	switch driver {
	case DriverMySQL:
		return mysqlDDL, nil
	case DriverSQLite:
		return sqliteDDL, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

var mysqlDDL = map[string][]string{
	tableComplaints: {`
CREATE TABLE IF NOT EXISTS complaints (
    id VARCHAR(32) NOT NULL PRIMARY KEY,
    title VARCHAR(255) NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    category VARCHAR(40) NOT NULL,
    latitude DOUBLE NOT NULL,
    longitude DOUBLE NOT NULL,
    accuracy DOUBLE NULL,
    captured_at DATETIME(6) NULL,
    address TEXT NOT NULL,
    reporter_user_id VARCHAR(64) NOT NULL DEFAULT '',
    reporter_name VARCHAR(255) NOT NULL DEFAULT '',
    reporter_phone VARCHAR(32) NOT NULL DEFAULT '',
    reporter_email VARCHAR(255) NOT NULL DEFAULT '',
    reporter_language VARCHAR(16) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL,
    duplicate_of VARCHAR(32) NULL,
    duplicate_override BOOLEAN NOT NULL DEFAULT FALSE,
    sla_target_at DATETIME(6) NULL,
    is_overdue BOOLEAN NOT NULL DEFAULT FALSE,
    escalation_level INT NOT NULL DEFAULT 0,
    assigned_to VARCHAR(64) NULL,
    resolved_at DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    INDEX idx_complaints_category_created (category, created_at),
    INDEX idx_complaints_lat_lng (latitude, longitude),
    INDEX idx_complaints_status (status)
)` + mysqlTableOptions},
	tableComplaintStatusHistory: {`
CREATE TABLE IF NOT EXISTS complaint_status_history (
    history_id VARCHAR(36) NOT NULL PRIMARY KEY,
    complaint_id VARCHAR(32) NOT NULL,
    seq INT NOT NULL,
    status VARCHAR(20) NOT NULL,
    changed_at DATETIME(6) NOT NULL,
    changed_by VARCHAR(64) NOT NULL,
    remarks TEXT NULL,
    UNIQUE KEY uq_status_history_seq (complaint_id, seq),
    CONSTRAINT fk_status_history_complaint FOREIGN KEY (complaint_id) REFERENCES complaints(id)
)` + mysqlTableOptions},
	tableComplaintEscalations: {`
CREATE TABLE IF NOT EXISTS complaint_escalations (
    escalation_id VARCHAR(36) NOT NULL PRIMARY KEY,
    complaint_id VARCHAR(32) NOT NULL,
    level INT NOT NULL,
    escalated_to VARCHAR(64) NULL,
    escalated_at DATETIME(6) NOT NULL,
    reason TEXT NOT NULL,
    UNIQUE KEY uq_escalation_level (complaint_id, level),
    CONSTRAINT fk_escalations_complaint FOREIGN KEY (complaint_id) REFERENCES complaints(id)
)` + mysqlTableOptions},
	tableComplaintSequences: {`
CREATE TABLE IF NOT EXISTS complaint_sequences (
    day CHAR(6) NOT NULL PRIMARY KEY,
    last_value BIGINT NOT NULL
)` + mysqlTableOptions},
	tableAdmins: {`
CREATE TABLE IF NOT EXISTS admins (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    role VARCHAR(32) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    password_hash VARCHAR(255) NOT NULL DEFAULT '',
    created_at DATETIME(6) NOT NULL,
    INDEX idx_admins_role_active (role, is_active)
)` + mysqlTableOptions},
	tableAuditLog: {`
CREATE TABLE IF NOT EXISTS audit_log (
    audit_id VARCHAR(36) NOT NULL PRIMARY KEY,
    entity_type VARCHAR(50) NOT NULL,
    entity_id VARCHAR(64) NOT NULL,
    action VARCHAR(50) NOT NULL,
    action_by_type VARCHAR(20) NOT NULL,
    action_by VARCHAR(64) NULL,
    metadata TEXT NULL,
    created_at DATETIME(6) NOT NULL,
    INDEX idx_audit_entity (entity_type, entity_id)
)` + mysqlTableOptions},
	tableNotificationLog: {`
CREATE TABLE IF NOT EXISTS notification_log (
    log_id VARCHAR(36) NOT NULL PRIMARY KEY,
    kind VARCHAR(32) NOT NULL,
    complaint_id VARCHAR(32) NOT NULL,
    channel VARCHAR(20) NOT NULL,
    recipient VARCHAR(255) NOT NULL,
    status VARCHAR(20) NOT NULL,
    error_message TEXT NULL,
    created_at DATETIME(6) NOT NULL,
    INDEX idx_notification_log_complaint (complaint_id)
)` + mysqlTableOptions},
}

// sqliteDDL mirrors mysqlDDL. Time columns are declared DATETIME so the
// sqlite3 driver scans them back into time.Time.
var sqliteDDL = map[string][]string{
	tableComplaints: {`
CREATE TABLE IF NOT EXISTS complaints (
    id TEXT NOT NULL PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    accuracy REAL NULL,
    captured_at DATETIME NULL,
    address TEXT NOT NULL,
    reporter_user_id TEXT NOT NULL DEFAULT '',
    reporter_name TEXT NOT NULL DEFAULT '',
    reporter_phone TEXT NOT NULL DEFAULT '',
    reporter_email TEXT NOT NULL DEFAULT '',
    reporter_language TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    duplicate_of TEXT NULL,
    duplicate_override BOOLEAN NOT NULL DEFAULT 0,
    sla_target_at DATETIME NULL,
    is_overdue BOOLEAN NOT NULL DEFAULT 0,
    escalation_level INTEGER NOT NULL DEFAULT 0,
    assigned_to TEXT NULL,
    resolved_at DATETIME NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
)`,
		`CREATE INDEX IF NOT EXISTS idx_complaints_category_created ON complaints (category, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_complaints_lat_lng ON complaints (latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints (status)`,
	},
	tableComplaintStatusHistory: {`
CREATE TABLE IF NOT EXISTS complaint_status_history (
    history_id TEXT NOT NULL PRIMARY KEY,
    complaint_id TEXT NOT NULL REFERENCES complaints(id),
    seq INTEGER NOT NULL,
    status TEXT NOT NULL,
    changed_at DATETIME NOT NULL,
    changed_by TEXT NOT NULL,
    remarks TEXT NULL,
    UNIQUE (complaint_id, seq)
)`},
	tableComplaintEscalations: {`
CREATE TABLE IF NOT EXISTS complaint_escalations (
    escalation_id TEXT NOT NULL PRIMARY KEY,
    complaint_id TEXT NOT NULL REFERENCES complaints(id),
    level INTEGER NOT NULL,
    escalated_to TEXT NULL,
    escalated_at DATETIME NOT NULL,
    reason TEXT NOT NULL,
    UNIQUE (complaint_id, level)
)`},
	tableComplaintSequences: {`
CREATE TABLE IF NOT EXISTS complaint_sequences (
    day TEXT NOT NULL PRIMARY KEY,
    last_value INTEGER NOT NULL
)`},
	tableAdmins: {`
CREATE TABLE IF NOT EXISTS admins (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    password_hash TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_admins_role_active ON admins (role, is_active)`,
	},
	tableAuditLog: {`
CREATE TABLE IF NOT EXISTS audit_log (
    audit_id TEXT NOT NULL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    action_by_type TEXT NOT NULL,
    action_by TEXT NULL,
    metadata TEXT NULL,
    created_at DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log (entity_type, entity_id)`,
	},
	tableNotificationLog: {`
CREATE TABLE IF NOT EXISTS notification_log (
    log_id TEXT NOT NULL PRIMARY KEY,
    kind TEXT NOT NULL,
    complaint_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    recipient TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT NULL,
    created_at DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_log_complaint ON notification_log (complaint_id)`,
	},
}
