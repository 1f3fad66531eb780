package models

import "time"

// DuplicateQuery selects complaints near a point within a time window
type DuplicateQuery struct {
	Latitude        float64
	Longitude       float64
	Category        Category
	RadiusMeters    float64
	Since           time.Time
	Until           time.Time
	ExcludeStatuses []ComplaintStatus
}

// Excludes reports whether status is filtered out by the query
func (q DuplicateQuery) Excludes(status ComplaintStatus) bool {
	for _, s := range q.ExcludeStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// DuplicateCandidate is an existing complaint that may describe the same problem
type DuplicateCandidate struct {
	ID        string          `json:"id"`
	Category  Category        `json:"category"`
	Status    ComplaintStatus `json:"status"`
	Distance  float64         `json:"distance"` // metres
	Address   string          `json:"address"`
	CreatedAt time.Time       `json:"created_at"`
}

// DuplicateResult is the outcome of a duplicate check
type DuplicateResult struct {
	IsDuplicate bool                 `json:"is_duplicate"`
	Candidates  []DuplicateCandidate `json:"candidates"`
	Checked     bool                 `json:"checked"` // false when the index could not be queried
	Message     string               `json:"message,omitempty"`
}
