package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"grievance/models"
	"grievance/utils"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ComplaintRepository handles database operations for complaints. The SQL
// is portable between the mysql and sqlite3 drivers.
type ComplaintRepository struct {
	db     *sql.DB
	driver string
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *sql.DB, driver string) *ComplaintRepository {
	return &ComplaintRepository{db: db, driver: driver}
}

const complaintColumns = `
	id, title, description, category, latitude, longitude, accuracy, captured_at, address,
	reporter_user_id, reporter_name, reporter_phone, reporter_email, reporter_language,
	status, duplicate_of, duplicate_override, sla_target_at, is_overdue, escalation_level,
	assigned_to, resolved_at, created_at, updated_at, version`

// Create inserts a complaint with its initial history in one transaction
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Version == 0 {
		complaint.Version = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO complaints (` + complaintColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		complaint.ID,
		complaint.Title,
		complaint.Description,
		complaint.Category,
		complaint.Location.Latitude,
		complaint.Location.Longitude,
		nullFloat(complaint.Location.Accuracy),
		nullTime(complaint.Location.CapturedAt),
		complaint.Location.Address,
		complaint.Reporter.UserID,
		complaint.Reporter.Name,
		complaint.Reporter.Phone,
		complaint.Reporter.Email,
		complaint.Reporter.Language,
		complaint.Status,
		nullString(complaint.DuplicateOf),
		complaint.DuplicateOverride,
		nullTime(complaint.SLA.TargetResolutionDate),
		complaint.SLA.IsOverdue,
		complaint.SLA.EscalationLevel,
		nullString(complaint.AssignedTo),
		nullTime(complaint.ResolvedAt),
		complaint.CreatedAt.UTC(),
		complaint.UpdatedAt.UTC(),
		complaint.Version,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return models.NewValidationError("complaint " + complaint.ID + " already exists")
		}
		return models.NewStoreError("create complaint", err)
	}

	if err := r.appendHistory(ctx, tx, complaint, 0, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return models.NewStoreError("commit complaint", err)
	}
	return nil
}

// Load reads a complaint with its status and escalation history
func (r *ComplaintRepository) Load(ctx context.Context, id string) (*models.Complaint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	complaint, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(id)
	}
	if err != nil {
		return nil, models.NewStoreError("load complaint", err)
	}

	complaint.StatusHistory, err = r.getStatusHistory(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	complaint.SLA.EscalationHistory, err = r.getEscalations(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return complaint, nil
}

// Save writes a new version of the complaint if the stored version still
// equals expectedVersion. History rows are append-only: only entries
// beyond those already stored are inserted.
func (r *ComplaintRepository) Save(ctx context.Context, complaint *models.Complaint, expectedVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE complaints SET
			title = ?, description = ?, status = ?, duplicate_of = ?, duplicate_override = ?,
			sla_target_at = ?, is_overdue = ?, escalation_level = ?, assigned_to = ?,
			resolved_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query,
		complaint.Title,
		complaint.Description,
		complaint.Status,
		nullString(complaint.DuplicateOf),
		complaint.DuplicateOverride,
		nullTime(complaint.SLA.TargetResolutionDate),
		complaint.SLA.IsOverdue,
		complaint.SLA.EscalationLevel,
		nullString(complaint.AssignedTo),
		nullTime(complaint.ResolvedAt),
		complaint.UpdatedAt.UTC(),
		complaint.ID,
		expectedVersion,
	)
	if err != nil {
		return models.NewStoreError("update complaint", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return models.NewStoreError("update complaint", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE id = ?`, complaint.ID).Scan(&exists); err != nil {
			return models.NewStoreError("check complaint", err)
		}
		if exists == 0 {
			return models.NewNotFoundError(complaint.ID)
		}
		return models.NewVersionConflictError(complaint.ID, expectedVersion)
	}

	var storedHistory, storedEscalations int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaint_status_history WHERE complaint_id = ?`, complaint.ID).Scan(&storedHistory); err != nil {
		return models.NewStoreError("count status history", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaint_escalations WHERE complaint_id = ?`, complaint.ID).Scan(&storedEscalations); err != nil {
		return models.NewStoreError("count escalations", err)
	}
	if storedHistory > len(complaint.StatusHistory) || storedEscalations > len(complaint.SLA.EscalationHistory) {
		return models.NewValidationError("history is append-only")
	}

	if err := r.appendHistory(ctx, tx, complaint, storedHistory, storedEscalations); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return models.NewStoreError("commit complaint", err)
	}
	complaint.Version = expectedVersion + 1
	return nil
}

// appendHistory inserts status entries from fromStatus and escalation
// entries from fromEscalation onwards.
func (r *ComplaintRepository) appendHistory(ctx context.Context, tx *sql.Tx, complaint *models.Complaint, fromStatus, fromEscalation int) error {
	for i := fromStatus; i < len(complaint.StatusHistory); i++ {
		entry := &complaint.StatusHistory[i]
		if entry.HistoryID == "" {
			entry.HistoryID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO complaint_status_history (history_id, complaint_id, seq, status, changed_at, changed_by, remarks)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.HistoryID, complaint.ID, i, entry.Status, entry.ChangedAt.UTC(), entry.ChangedBy,
			sql.NullString{String: entry.Remarks, Valid: entry.Remarks != ""},
		)
		if err != nil {
			return models.NewStoreError("create status history", err)
		}
	}

	for i := fromEscalation; i < len(complaint.SLA.EscalationHistory); i++ {
		entry := &complaint.SLA.EscalationHistory[i]
		if entry.EscalationID == "" {
			entry.EscalationID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO complaint_escalations (escalation_id, complaint_id, level, escalated_to, escalated_at, reason)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entry.EscalationID, complaint.ID, entry.Level, nullString(entry.EscalatedTo), entry.EscalatedAt.UTC(), entry.Reason,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return models.NewVersionConflictError(complaint.ID, complaint.Version)
			}
			return models.NewStoreError("create escalation", err)
		}
	}
	return nil
}

// ListOpen returns ids of pending and in-progress complaints, oldest first
func (r *ComplaintRepository) ListOpen(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM complaints WHERE status IN (?, ?) ORDER BY created_at, id`,
		models.StatusPending, models.StatusInProgress,
	)
	if err != nil {
		return nil, models.NewStoreError("list open complaints", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, models.NewStoreError("scan complaint id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStoreError("iterate complaint ids", err)
	}
	return ids, nil
}

// NextSequence allocates the next per-day counter. The counter row is
// created on first use; a concurrent creator makes us retry the update.
func (r *ComplaintRepository) NextSequence(ctx context.Context, day string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		seq, err := r.nextSequenceOnce(ctx, day)
		if err == nil {
			return seq, nil
		}
		if !isDuplicateKey(err) {
			return 0, models.NewStoreError("allocate sequence", err)
		}
		lastErr = err
	}
	return 0, models.NewStoreError("allocate sequence", lastErr)
}

func (r *ComplaintRepository) nextSequenceOnce(ctx context.Context, day string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE complaint_sequences SET last_value = last_value + 1 WHERE day = ?`, day)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO complaint_sequences (day, last_value) VALUES (?, 1)`, day); err != nil {
			return 0, err
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT last_value FROM complaint_sequences WHERE day = ?`, day).Scan(&seq); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

// FindNearby prefilters with a bounding box in SQL and keeps rows whose
// Haversine distance is within the radius.
func (r *ComplaintRepository) FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	box := utils.BoundingBoxAround(query.Latitude, query.Longitude, query.RadiusMeters)

	var sb strings.Builder
	sb.WriteString(`SELECT id, category, status, latitude, longitude, address, created_at
		FROM complaints
		WHERE category = ? AND created_at >= ? AND created_at <= ?
		AND latitude BETWEEN ? AND ?`)
	args := []interface{}{query.Category, query.Since.UTC(), query.Until.UTC(), box.MinLat, box.MaxLat}
	if !box.WrapsLongitude {
		sb.WriteString(` AND longitude BETWEEN ? AND ?`)
		args = append(args, box.MinLng, box.MaxLng)
	}
	if len(query.ExcludeStatuses) > 0 {
		sb.WriteString(` AND status NOT IN (` + placeholders(len(query.ExcludeStatuses)) + `)`)
		for _, s := range query.ExcludeStatuses {
			args = append(args, s)
		}
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, models.NewIndexError(err)
	}
	defer rows.Close()

	candidates := make([]models.DuplicateCandidate, 0)
	for rows.Next() {
		var (
			c        models.DuplicateCandidate
			lat, lng float64
		)
		if err := rows.Scan(&c.ID, &c.Category, &c.Status, &lat, &lng, &c.Address, &c.CreatedAt); err != nil {
			return nil, models.NewIndexError(err)
		}
		c.Distance = utils.Haversine(query.Latitude, query.Longitude, lat, lng)
		if c.Distance <= query.RadiusMeters {
			candidates = append(candidates, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewIndexError(err)
	}
	return candidates, nil
}

func (r *ComplaintRepository) getStatusHistory(ctx context.Context, q queryer, id string) ([]models.StatusHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT history_id, status, changed_at, changed_by, remarks
		FROM complaint_status_history WHERE complaint_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, models.NewStoreError("load status history", err)
	}
	defer rows.Close()

	history := make([]models.StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			entry   models.StatusHistoryEntry
			remarks sql.NullString
		)
		if err := rows.Scan(&entry.HistoryID, &entry.Status, &entry.ChangedAt, &entry.ChangedBy, &remarks); err != nil {
			return nil, models.NewStoreError("scan status history", err)
		}
		entry.ChangedAt = entry.ChangedAt.UTC()
		entry.Remarks = remarks.String
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStoreError("iterate status history", err)
	}
	return history, nil
}

func (r *ComplaintRepository) getEscalations(ctx context.Context, q queryer, id string) ([]models.EscalationEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT escalation_id, level, escalated_to, escalated_at, reason
		FROM complaint_escalations WHERE complaint_id = ? ORDER BY level`, id)
	if err != nil {
		return nil, models.NewStoreError("load escalations", err)
	}
	defer rows.Close()

	entries := make([]models.EscalationEntry, 0)
	for rows.Next() {
		var (
			entry models.EscalationEntry
			to    sql.NullString
		)
		if err := rows.Scan(&entry.EscalationID, &entry.Level, &to, &entry.EscalatedAt, &entry.Reason); err != nil {
			return nil, models.NewStoreError("scan escalation", err)
		}
		entry.EscalatedAt = entry.EscalatedAt.UTC()
		if to.Valid {
			entry.EscalatedTo = models.StringPtr(to.String)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStoreError("iterate escalations", err)
	}
	return entries, nil
}

func scanComplaint(row *sql.Row) (*models.Complaint, error) {
	var (
		c                                 models.Complaint
		accuracy                          sql.NullFloat64
		capturedAt, slaTarget, resolvedAt sql.NullTime
		duplicateOf, assignedTo           sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category,
		&c.Location.Latitude, &c.Location.Longitude, &accuracy, &capturedAt, &c.Location.Address,
		&c.Reporter.UserID, &c.Reporter.Name, &c.Reporter.Phone, &c.Reporter.Email, &c.Reporter.Language,
		&c.Status, &duplicateOf, &c.DuplicateOverride, &slaTarget, &c.SLA.IsOverdue, &c.SLA.EscalationLevel,
		&assignedTo, &resolvedAt, &c.CreatedAt, &c.UpdatedAt, &c.Version,
	)
	if err != nil {
		return nil, err
	}

	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if accuracy.Valid {
		c.Location.Accuracy = &accuracy.Float64
	}
	c.Location.CapturedAt = fromNullTime(capturedAt)
	c.SLA.TargetResolutionDate = fromNullTime(slaTarget)
	c.ResolvedAt = fromNullTime(resolvedAt)
	if duplicateOf.Valid {
		c.DuplicateOf = models.StringPtr(duplicateOf.String)
	}
	if assignedTo.Valid {
		c.AssignedTo = models.StringPtr(assignedTo.String)
	}
	return &c, nil
}

// isDuplicateKey recognises unique-constraint violations from either driver
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
