package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"grievance/models"
)

const (
	// DefaultDuplicateRadiusMeters is the search radius around a new report
	DefaultDuplicateRadiusMeters = 100.0
	// DefaultDuplicateWindow is how far back the detector looks
	DefaultDuplicateWindow = 24 * time.Hour
	// MaxDuplicateCandidates caps the candidates returned to the citizen
	MaxDuplicateCandidates = 5
)

// DuplicateDetectorConfig holds detector parameters
type DuplicateDetectorConfig struct {
	RadiusMeters float64
	Window       time.Duration
	Timeout      time.Duration // 0 = no timeout beyond the caller's context
}

// DuplicateDetector finds recent nearby complaints of the same category
type DuplicateDetector struct {
	index  GeoIndex
	audit  AuditLogger // optional
	clock  Clock
	config DuplicateDetectorConfig
}

// NewDuplicateDetector creates a new duplicate detector
func NewDuplicateDetector(index GeoIndex, audit AuditLogger, clock Clock, config DuplicateDetectorConfig) *DuplicateDetector {
	if config.RadiusMeters <= 0 {
		config.RadiusMeters = DefaultDuplicateRadiusMeters
	}
	if config.Window <= 0 {
		config.Window = DefaultDuplicateWindow
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &DuplicateDetector{index: index, audit: audit, clock: clock, config: config}
}

// CheckDuplicate looks for existing complaints that probably describe the
// same problem. Only bad input produces an error: an unreachable index
// degrades to a "not duplicate" result with Checked=false.
func (d *DuplicateDetector) CheckDuplicate(ctx context.Context, longitude, latitude float64, category models.Category) (models.DuplicateResult, error) {
	if err := (models.Location{Latitude: latitude, Longitude: longitude}).Validate(); err != nil {
		return models.DuplicateResult{}, err
	}
	if !category.Valid() {
		return models.DuplicateResult{}, models.NewValidationError("unknown category " + string(category))
	}

	now := d.clock.Now()
	query := models.DuplicateQuery{
		Latitude:        latitude,
		Longitude:       longitude,
		Category:        category,
		RadiusMeters:    d.config.RadiusMeters,
		Since:           now.Add(-d.config.Window),
		Until:           now,
		ExcludeStatuses: []models.ComplaintStatus{models.StatusRejected, models.StatusDuplicate},
	}

	queryCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	found, err := d.findNearby(queryCtx, query)
	if err != nil {
		log.Printf("[DUPLICATE] degraded: %v (lat=%.6f lng=%.6f category=%s)", models.NewIndexError(err), latitude, longitude, category)
		result := models.DuplicateResult{
			IsDuplicate: false,
			Candidates:  []models.DuplicateCandidate{},
			Checked:     false,
			Message:     "Duplicate check unavailable; submission accepted without it",
		}
		d.logCheck(ctx, query, result)
		return result, nil
	}

	candidates := rankCandidates(found, query)
	result := models.DuplicateResult{
		IsDuplicate: len(candidates) > 0,
		Candidates:  candidates,
		Checked:     true,
	}
	if result.IsDuplicate {
		result.Message = fmt.Sprintf("Found %d similar complaint(s) within %.0fm in the last %s", len(candidates), d.config.RadiusMeters, formatWindow(d.config.Window))
	} else {
		result.Message = "No similar complaints found nearby"
	}

	d.logCheck(ctx, query, result)
	return result, nil
}

// findNearby bounds the index query by ctx even when the index ignores it
func (d *DuplicateDetector) findNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	type findResult struct {
		candidates []models.DuplicateCandidate
		err        error
	}
	done := make(chan findResult, 1)
	go func() {
		candidates, err := d.index.FindNearby(ctx, query)
		done <- findResult{candidates, err}
	}()

	select {
	case r := <-done:
		return r.candidates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// rankCandidates re-applies the query filters, orders by distance (newest
// first on ties), rounds distances to the metre and caps the list.
func rankCandidates(found []models.DuplicateCandidate, query models.DuplicateQuery) []models.DuplicateCandidate {
	candidates := make([]models.DuplicateCandidate, 0, len(found))
	for _, c := range found {
		if c.Category != query.Category || query.Excludes(c.Status) {
			continue
		}
		if c.Distance > query.RadiusMeters {
			continue
		}
		if c.CreatedAt.Before(query.Since) || c.CreatedAt.After(query.Until) {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	if len(candidates) > MaxDuplicateCandidates {
		candidates = candidates[:MaxDuplicateCandidates]
	}
	for i := range candidates {
		candidates[i].Distance = math.Round(candidates[i].Distance)
	}
	return candidates
}

// logCheck writes the outcome to the audit log
func (d *DuplicateDetector) logCheck(ctx context.Context, query models.DuplicateQuery, result models.DuplicateResult) {
	if d.audit == nil {
		return
	}

	ids := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		ids = append(ids, c.ID)
	}
	metadata, _ := json.Marshal(map[string]interface{}{
		"latitude":      query.Latitude,
		"longitude":     query.Longitude,
		"category":      query.Category,
		"radius_meters": query.RadiusMeters,
		"is_duplicate":  result.IsDuplicate,
		"checked":       result.Checked,
		"candidate_ids": ids,
	})

	entry := &models.AuditLog{
		EntityType:   "duplicate_check",
		EntityID:     string(query.Category),
		Action:       "duplicate_check",
		ActionByType: models.ActorSystem,
		CreatedAt:    query.Until,
	}
	entry.Metadata.String, entry.Metadata.Valid = string(metadata), true

	if err := d.audit.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[DUPLICATE] failed to write audit log: %v", err)
	}
}

func formatWindow(w time.Duration) string {
	if w%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(w.Hours()))
	}
	return w.String()
}
