package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"grievance/models"
	"grievance/utils"
)

// gridCellDegrees is the cell size of the in-memory spatial grid (~1.1km)
const gridCellDegrees = 0.01

// maxGridCells bounds a grid walk; wider searches scan the category list
const maxGridCells = 2500

type gridKey struct {
	category models.Category
	latCell  int
	lngCell  int
}

// MemoryStore keeps complaints, admins and logs in process memory. It
// satisfies the same contracts as the SQL repositories and backs tests and
// single-node development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	complaints map[string]*models.Complaint
	order      []string // creation order
	grid       map[gridKey][]string
	byCategory map[models.Category][]string
	sequences  map[string]int64
	admins     map[string]models.Admin
	auditLogs  []models.AuditLog
	notifyLogs []models.NotificationLog
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		complaints: make(map[string]*models.Complaint),
		grid:       make(map[gridKey][]string),
		byCategory: make(map[models.Category][]string),
		sequences:  make(map[string]int64),
		admins:     make(map[string]models.Admin),
	}
}

// Create stores a new complaint
func (m *MemoryStore) Create(ctx context.Context, complaint *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.complaints[complaint.ID]; exists {
		return models.NewValidationError("complaint " + complaint.ID + " already exists")
	}
	if complaint.Version == 0 {
		complaint.Version = 1
	}
	stored := complaint.Clone()
	assignRowIDs(stored)
	complaint.StatusHistory = append([]models.StatusHistoryEntry(nil), stored.StatusHistory...)

	m.complaints[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	m.byCategory[stored.Category] = append(m.byCategory[stored.Category], stored.ID)
	key := cellOf(stored.Category, stored.Location.Latitude, stored.Location.Longitude)
	m.grid[key] = append(m.grid[key], stored.ID)
	return nil
}

// Load returns a copy of the stored complaint
func (m *MemoryStore) Load(ctx context.Context, id string) (*models.Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.complaints[id]
	if !ok {
		return nil, models.NewNotFoundError(id)
	}
	return stored.Clone(), nil
}

// Save replaces the stored complaint when its version still matches
func (m *MemoryStore) Save(ctx context.Context, complaint *models.Complaint, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.complaints[complaint.ID]
	if !ok {
		return models.NewNotFoundError(complaint.ID)
	}
	if stored.Version != expectedVersion {
		return models.NewVersionConflictError(complaint.ID, expectedVersion)
	}
	if len(complaint.StatusHistory) < len(stored.StatusHistory) ||
		len(complaint.SLA.EscalationHistory) < len(stored.SLA.EscalationHistory) {
		return models.NewValidationError("history is append-only")
	}

	next := complaint.Clone()
	next.Version = expectedVersion + 1
	// Location and creation time are fixed at submission.
	next.Location = stored.Location
	next.CreatedAt = stored.CreatedAt
	assignRowIDs(next)

	m.complaints[next.ID] = next
	complaint.Version = next.Version
	complaint.StatusHistory = append([]models.StatusHistoryEntry(nil), next.StatusHistory...)
	complaint.SLA.EscalationHistory = append([]models.EscalationEntry(nil), next.SLA.EscalationHistory...)
	return nil
}

// ListOpen returns ids of pending and in-progress complaints, oldest first
func (m *MemoryStore) ListOpen(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0)
	for _, id := range m.order {
		if m.complaints[id].Status.IsOpen() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NextSequence increments the per-day counter
func (m *MemoryStore) NextSequence(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequences[day]++
	return m.sequences[day], nil
}

// FindNearby walks the grid cells covering the search circle
func (m *MemoryStore) FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	box := utils.BoundingBoxAround(query.Latitude, query.Longitude, query.RadiusMeters)
	var ids []string
	minLat, maxLat := cellIndex(box.MinLat), cellIndex(box.MaxLat)
	minLng, maxLng := cellIndex(box.MinLng), cellIndex(box.MaxLng)
	if box.WrapsLongitude || (maxLat-minLat+1)*(maxLng-minLng+1) > maxGridCells {
		ids = m.byCategory[query.Category]
	} else {
		for la := minLat; la <= maxLat; la++ {
			for ln := minLng; ln <= maxLng; ln++ {
				ids = append(ids, m.grid[gridKey{query.Category, la, ln}]...)
			}
		}
	}

	candidates := make([]models.DuplicateCandidate, 0)
	for _, id := range ids {
		c := m.complaints[id]
		if c.Category != query.Category || query.Excludes(c.Status) {
			continue
		}
		if c.CreatedAt.Before(query.Since) || c.CreatedAt.After(query.Until) {
			continue
		}
		distance := utils.Haversine(query.Latitude, query.Longitude, c.Location.Latitude, c.Location.Longitude)
		if distance > query.RadiusMeters {
			continue
		}
		candidates = append(candidates, models.DuplicateCandidate{
			ID:        c.ID,
			Category:  c.Category,
			Status:    c.Status,
			Distance:  distance,
			Address:   c.Location.Address,
			CreatedAt: c.CreatedAt,
		})
	}
	return candidates, nil
}

// AddAdmin registers an administrator
func (m *MemoryStore) AddAdmin(admin models.Admin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[admin.ID] = admin
}

// FindActiveByRole lists active admins with role, ordered by id
func (m *MemoryStore) FindActiveByRole(ctx context.Context, role models.AdminRole) ([]models.Admin, error) {
	return m.filterAdmins(func(a models.Admin) bool { return a.Role == role }), nil
}

// FindActiveExcluding lists active admins other than adminID, ordered by id
func (m *MemoryStore) FindActiveExcluding(ctx context.Context, adminID string) ([]models.Admin, error) {
	return m.filterAdmins(func(a models.Admin) bool { return a.ID != adminID }), nil
}

// GetByID returns the admin or nil
func (m *MemoryStore) GetByID(ctx context.Context, adminID string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admin, ok := m.admins[adminID]
	if !ok {
		return nil, nil
	}
	return &admin, nil
}

// GetByEmail returns the admin with email or nil
func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, admin := range m.admins {
		if admin.Email == email {
			a := admin
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) filterAdmins(keep func(models.Admin) bool) []models.Admin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	admins := make([]models.Admin, 0)
	for _, a := range m.admins {
		if a.IsActive && keep(a) {
			admins = append(admins, a)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins
}

// CreateAuditLog appends an audit entry
func (m *MemoryStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.AuditID == "" {
		entry.AuditID = uuid.New().String()
	}
	m.auditLogs = append(m.auditLogs, *entry)
	return nil
}

// AuditLogs returns a copy of the audit trail
func (m *MemoryStore) AuditLogs() []models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AuditLog(nil), m.auditLogs...)
}

// CreateNotificationLog appends a delivery attempt
func (m *MemoryStore) CreateNotificationLog(ctx context.Context, entry *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	m.notifyLogs = append(m.notifyLogs, *entry)
	return nil
}

// NotificationLogs returns a copy of the delivery log
func (m *MemoryStore) NotificationLogs() []models.NotificationLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.NotificationLog(nil), m.notifyLogs...)
}

// assignRowIDs gives new history rows an id, as the SQL store does
func assignRowIDs(c *models.Complaint) {
	for i := range c.StatusHistory {
		if c.StatusHistory[i].HistoryID == "" {
			c.StatusHistory[i].HistoryID = uuid.New().String()
		}
	}
	for i := range c.SLA.EscalationHistory {
		if c.SLA.EscalationHistory[i].EscalationID == "" {
			c.SLA.EscalationHistory[i].EscalationID = uuid.New().String()
		}
	}
}

func cellIndex(deg float64) int {
	return int(math.Floor(deg / gridCellDegrees))
}

func cellOf(category models.Category, lat, lng float64) gridKey {
	return gridKey{category: category, latCell: cellIndex(lat), lngCell: cellIndex(lng)}
}
