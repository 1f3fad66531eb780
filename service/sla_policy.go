package service

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"grievance/models"
)

// SLATarget is the resolution target for one category
type SLATarget struct {
	TargetHours  int `json:"target_hours"`
	WarningHours int `json:"warning_hours"`
}

// SLAPolicy maps categories to resolution targets. It is read-only once
// loaded and safe to share between goroutines.
type SLAPolicy struct {
	Default    SLATarget                     `json:"default"`
	Categories map[models.Category]SLATarget `json:"categories"`
}

// DefaultSLAPolicy returns the built-in targets
func DefaultSLAPolicy() *SLAPolicy {
	return &SLAPolicy{
		Default: SLATarget{TargetHours: 72, WarningHours: 12},
		Categories: map[models.Category]SLATarget{
			models.CategoryRoadDamage:          {TargetHours: 72, WarningHours: 12},
			models.CategoryStreetLight:         {TargetHours: 48, WarningHours: 8},
			models.CategoryWaterSupply:         {TargetHours: 24, WarningHours: 4},
			models.CategorySewage:              {TargetHours: 24, WarningHours: 4},
			models.CategoryGarbage:             {TargetHours: 48, WarningHours: 8},
			models.CategoryEncroachment:        {TargetHours: 168, WarningHours: 24},
			models.CategoryNoisePollution:      {TargetHours: 48, WarningHours: 8},
			models.CategoryIllegalConstruction: {TargetHours: 168, WarningHours: 24},
			models.CategoryTraffic:             {TargetHours: 24, WarningHours: 4},
			models.CategoryOther:               {TargetHours: 72, WarningHours: 12},
		},
	}
}

// LoadSLAPolicy reads a JSON policy file. Categories missing from the
// file fall back to the default entry.
func LoadSLAPolicy(path string) (*SLAPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SLA policy: %w", err)
	}
	return ParseSLAPolicy(data)
}

// ParseSLAPolicy decodes and validates a JSON policy
func ParseSLAPolicy(data []byte) (*SLAPolicy, error) {
	var policy SLAPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse SLA policy: %w", err)
	}
	if policy.Default.TargetHours <= 0 {
		return nil, fmt.Errorf("SLA policy default target_hours must be positive")
	}
	if policy.Default.WarningHours < 0 || policy.Default.WarningHours > policy.Default.TargetHours {
		return nil, fmt.Errorf("SLA policy default warning_hours must be between 0 and target_hours")
	}
	for category, target := range policy.Categories {
		if !category.Valid() {
			return nil, fmt.Errorf("SLA policy references unknown category %q", category)
		}
		if target.TargetHours <= 0 {
			return nil, fmt.Errorf("SLA policy target_hours for %s must be positive", category)
		}
		if target.WarningHours < 0 || target.WarningHours > target.TargetHours {
			return nil, fmt.Errorf("SLA policy warning_hours for %s must be between 0 and target_hours", category)
		}
	}
	return &policy, nil
}

// TargetFor returns the entry for category, or the default
func (p *SLAPolicy) TargetFor(category models.Category) SLATarget {
	if target, ok := p.Categories[category]; ok {
		return target
	}
	return p.Default
}

// ComputeTarget returns createdAt + targetHours(category)
func (p *SLAPolicy) ComputeTarget(category models.Category, createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(p.TargetFor(category).TargetHours) * time.Hour)
}

// targetOf returns the stored target or derives it from createdAt
func (p *SLAPolicy) targetOf(complaint *models.Complaint) time.Time {
	if complaint.SLA.TargetResolutionDate != nil {
		return *complaint.SLA.TargetResolutionDate
	}
	return p.ComputeTarget(complaint.Category, complaint.CreatedAt)
}

// IsOverdue reports now > target
func (p *SLAPolicy) IsOverdue(complaint *models.Complaint, now time.Time) bool {
	return now.After(p.targetOf(complaint))
}

// HoursRemaining returns max(0, target-now) in hours
func (p *SLAPolicy) HoursRemaining(complaint *models.Complaint, now time.Time) float64 {
	return math.Max(0, p.targetOf(complaint).Sub(now).Hours())
}

// InWarningWindow reports a complaint that is not yet overdue but within
// warningHours of its target.
func (p *SLAPolicy) InWarningWindow(complaint *models.Complaint, now time.Time) bool {
	if p.IsOverdue(complaint, now) {
		return false
	}
	warning := time.Duration(p.TargetFor(complaint.Category).WarningHours) * time.Hour
	return p.targetOf(complaint).Sub(now) <= warning
}

// Status builds the SLA read model for a complaint
func (p *SLAPolicy) Status(complaint *models.Complaint, now time.Time) models.SLAStatus {
	target := p.targetOf(complaint)
	status := models.SLAStatus{
		ComplaintID:          complaint.ID,
		Status:               complaint.Status,
		TargetResolutionDate: &target,
		EscalationLevel:      complaint.SLA.EscalationLevel,
	}
	if complaint.Status.IsOpen() {
		status.IsOverdue = p.IsOverdue(complaint, now)
		status.InWarningWindow = p.InWarningWindow(complaint, now)
		status.HoursRemaining = p.HoursRemaining(complaint, now)
	} else {
		status.IsOverdue = complaint.SLA.IsOverdue
	}
	return status
}
