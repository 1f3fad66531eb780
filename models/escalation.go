package models

import (
	"sync"
	"time"
)

// EscalationOutcome describes what a scan did to one complaint
type EscalationOutcome string

const (
	OutcomeUnchanged   EscalationOutcome = "unchanged"
	OutcomeInitialised EscalationOutcome = "sla_initialised"
	OutcomeOverdue     EscalationOutcome = "marked_overdue"
	OutcomeEscalated   EscalationOutcome = "escalated"
	OutcomeWarning     EscalationOutcome = "warning"
	OutcomeConflict    EscalationOutcome = "version_conflict"
	OutcomeFailed      EscalationOutcome = "failed"
)

// EscalationResult represents the result of escalation processing for one complaint
type EscalationResult struct {
	ComplaintID    string            `json:"complaint_id"`
	Outcome        EscalationOutcome `json:"outcome"`
	Escalated      bool              `json:"escalated"`
	Level          int               `json:"level"`
	EscalatedTo    *string           `json:"escalated_to,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	HoursRemaining float64           `json:"hours_remaining"`
	ProcessedAt    time.Time         `json:"processed_at"`
}

// ScanReport summarises one run of the escalation scheduler
type ScanReport struct {
	StartedAt          time.Time          `json:"started_at"`
	FinishedAt         time.Time          `json:"finished_at"`
	DryRun             bool               `json:"dry_run"`
	Scanned            int                `json:"scanned"`
	TargetsInitialised int                `json:"targets_initialised"`
	NewlyOverdue       int                `json:"newly_overdue"`
	Escalated          int                `json:"escalated"`
	EscalatedByLevel   map[int]int        `json:"escalated_by_level"`
	Warnings           int                `json:"warnings"`
	Conflicts          int                `json:"conflicts"`
	Failures           int                `json:"failures"`
	Cancelled          bool               `json:"cancelled"`
	Results            []EscalationResult `json:"results"`

	mu sync.Mutex
}

// NewScanReport starts an empty report
func NewScanReport(startedAt time.Time, dryRun bool) *ScanReport {
	return &ScanReport{
		StartedAt:        startedAt,
		DryRun:           dryRun,
		EscalatedByLevel: make(map[int]int),
	}
}

// Record adds one complaint result; safe for concurrent workers
func (r *ScanReport) Record(res EscalationResult, initialised, newlyOverdue bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Scanned++
	if initialised {
		r.TargetsInitialised++
	}
	if newlyOverdue {
		r.NewlyOverdue++
	}
	switch res.Outcome {
	case OutcomeEscalated:
		r.Escalated++
		r.EscalatedByLevel[res.Level]++
	case OutcomeWarning:
		r.Warnings++
	case OutcomeConflict:
		r.Conflicts++
	case OutcomeFailed:
		r.Failures++
	}
	if res.Outcome != OutcomeUnchanged {
		r.Results = append(r.Results, res)
	}
}

// Duration is the wall time of the scan
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
