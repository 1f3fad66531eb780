package models

import (
	"database/sql"
	"math"
	"time"
)

// ComplaintStatus represents the possible statuses of a complaint
type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "pending"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusRejected   ComplaintStatus = "rejected"
	StatusDuplicate  ComplaintStatus = "duplicate"
)

// Valid reports whether s is one of the known statuses
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected, StatusDuplicate:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s
func (s ComplaintStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusDuplicate
}

// IsOpen reports whether the escalation scheduler should look at s
func (s ComplaintStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// Category is the closed set of grievance categories produced by the classifier
type Category string

const (
	CategoryRoadDamage          Category = "road_damage"
	CategoryStreetLight         Category = "street_light"
	CategoryWaterSupply         Category = "water_supply"
	CategorySewage              Category = "sewage"
	CategoryGarbage             Category = "garbage"
	CategoryEncroachment        Category = "encroachment"
	CategoryNoisePollution      Category = "noise_pollution"
	CategoryIllegalConstruction Category = "illegal_construction"
	CategoryTraffic             Category = "traffic"
	CategoryOther               Category = "other"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategoryRoadDamage,
	CategoryStreetLight,
	CategoryWaterSupply,
	CategorySewage,
	CategoryGarbage,
	CategoryEncroachment,
	CategoryNoisePollution,
	CategoryIllegalConstruction,
	CategoryTraffic,
	CategoryOther,
}

// Valid reports whether c belongs to the closed category set
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ActorType represents who performed an action
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// SystemActor is recorded as changedBy for transitions made by the scheduler
const SystemActor = "system"

// Location is where the citizen reported the problem
type Location struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`    // metres, as reported by the device
	CapturedAt *time.Time `json:"captured_at,omitempty"` // device timestamp of the fix
	Address    string     `json:"address"`
}

// Validate checks the coordinate ranges. NaN and infinities are rejected.
func (l Location) Validate() error {
	if !isFinite(l.Latitude) || !isFinite(l.Longitude) {
		return NewValidationError("latitude and longitude must be finite numbers")
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return NewValidationError("latitude must be between -90 and 90")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Reporter identifies the citizen who filed the complaint
type Reporter struct {
	UserID   string `db:"reporter_user_id" json:"user_id"`
	Name     string `db:"reporter_name" json:"name,omitempty"`
	Phone    string `db:"reporter_phone" json:"phone,omitempty"`
	Email    string `db:"reporter_email" json:"email,omitempty"`
	Language string `db:"reporter_language" json:"language,omitempty"` // BCP 47 tag, empty = English
}

// StatusHistoryEntry is one immutable row of a complaint's status trail
type StatusHistoryEntry struct {
	HistoryID string          `db:"history_id" json:"history_id"`
	Status    ComplaintStatus `db:"status" json:"status"`
	ChangedAt time.Time       `db:"changed_at" json:"changed_at"`
	ChangedBy string          `db:"changed_by" json:"changed_by"`
	Remarks   string          `db:"remarks" json:"remarks,omitempty"`
}

// EscalationEntry records one promotion through the escalation tiers
type EscalationEntry struct {
	EscalationID string    `db:"escalation_id" json:"escalation_id"`
	Level        int       `db:"level" json:"level"`
	EscalatedTo  *string   `db:"escalated_to" json:"escalated_to"` // nil when no admin was eligible
	EscalatedAt  time.Time `db:"escalated_at" json:"escalated_at"`
	Reason       string    `db:"reason" json:"reason"`
}

// MaxEscalationLevel is the highest escalation tier
const MaxEscalationLevel = 3

// SLAInfo holds the resolution target and escalation state of a complaint
type SLAInfo struct {
	TargetResolutionDate *time.Time        `json:"target_resolution_date"` // nil on legacy rows until the scheduler initialises it
	IsOverdue            bool              `json:"is_overdue"`
	EscalationLevel      int               `json:"escalation_level"`
	EscalationHistory    []EscalationEntry `json:"escalation_history"`
}

// HasEscalatedTo reports whether level is already present in the history
func (s SLAInfo) HasEscalatedTo(level int) bool {
	for _, e := range s.EscalationHistory {
		if e.Level == level {
			return true
		}
	}
	return false
}

// Complaint represents a citizen grievance
type Complaint struct {
	ID                string               `db:"id" json:"id"`
	Title             string               `db:"title" json:"title"`
	Description       string               `db:"description" json:"description"`
	Category          Category             `db:"category" json:"category"`
	Location          Location             `json:"location"`
	Reporter          Reporter             `json:"reporter"`
	Status            ComplaintStatus      `db:"status" json:"status"`
	StatusHistory     []StatusHistoryEntry `json:"status_history"`
	DuplicateOf       *string              `db:"duplicate_of" json:"duplicate_of,omitempty"`
	DuplicateOverride bool                 `db:"duplicate_override" json:"duplicate_override"`
	SLA               SLAInfo              `json:"sla"`
	AssignedTo        *string              `db:"assigned_to" json:"assigned_to,omitempty"`
	ResolvedAt        *time.Time           `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`
	Version           int64                `db:"version" json:"version"`
}

// Clone returns a deep copy so that callers can derive a new snapshot
// without touching the one they loaded.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	out.Location.Accuracy = cloneFloat(c.Location.Accuracy)
	out.Location.CapturedAt = cloneTime(c.Location.CapturedAt)
	out.StatusHistory = append([]StatusHistoryEntry(nil), c.StatusHistory...)
	out.DuplicateOf = cloneString(c.DuplicateOf)
	out.AssignedTo = cloneString(c.AssignedTo)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.SLA.TargetResolutionDate = cloneTime(c.SLA.TargetResolutionDate)
	out.SLA.EscalationHistory = make([]EscalationEntry, len(c.SLA.EscalationHistory))
	for i, e := range c.SLA.EscalationHistory {
		e.EscalatedTo = cloneString(e.EscalatedTo)
		out.SLA.EscalationHistory[i] = e
	}
	return &out
}

// LastStatusChange returns the most recent history entry, or the zero value
func (c *Complaint) LastStatusChange() StatusHistoryEntry {
	if len(c.StatusHistory) == 0 {
		return StatusHistoryEntry{}
	}
	return c.StatusHistory[len(c.StatusHistory)-1]
}

// AuditLog represents an audit trail entry (immutable)
type AuditLog struct {
	AuditID      string         `db:"audit_id" json:"audit_id"`
	EntityType   string         `db:"entity_type" json:"entity_type"`
	EntityID     string         `db:"entity_id" json:"entity_id"`
	Action       string         `db:"action" json:"action"`
	ActionByType ActorType      `db:"action_by_type" json:"action_by_type"`
	ActionBy     sql.NullString `db:"action_by" json:"action_by"`
	Metadata     sql.NullString `db:"metadata" json:"metadata"` // JSON
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TimePtr returns a pointer to a copy of t
func TimePtr(t time.Time) *time.Time {
	return &t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
