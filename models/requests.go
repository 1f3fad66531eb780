package models

import "time"

// SubmitComplaintRequest is the citizen-facing submission payload
type SubmitComplaintRequest struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Category            Category `json:"category"`
	Location            Location `json:"location"`
	Reporter            Reporter `json:"reporter"`
	ConfirmNotDuplicate bool     `json:"confirm_not_duplicate"`
}

// SubmitComplaintResponse reports either the created complaint or the
// duplicate candidates that stopped the submission.
type SubmitComplaintResponse struct {
	Created   bool            `json:"created"`
	Complaint *Complaint      `json:"complaint,omitempty"`
	Duplicate DuplicateResult `json:"duplicate"`
	Message   string          `json:"message"`
}

// DuplicateCheckRequest asks whether a report would duplicate an existing one
type DuplicateCheckRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Category  Category `json:"category"`
}

// UpdateStatusRequest is the admin payload for a status transition
type UpdateStatusRequest struct {
	Status      ComplaintStatus `json:"status"`
	Remarks     string          `json:"remarks"`
	DuplicateOf string          `json:"duplicate_of,omitempty"`
}

// AssignComplaintRequest is the admin payload for manual assignment
type AssignComplaintRequest struct {
	AdminID string `json:"admin_id"`
	Remarks string `json:"remarks,omitempty"`
}

// AdminLoginRequest carries admin credentials
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginResponse returns the admin token
type AdminLoginResponse struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}

// SLAStatus is the read model behind GET /complaints/{id}/sla
type SLAStatus struct {
	ComplaintID          string          `json:"complaint_id"`
	Status               ComplaintStatus `json:"status"`
	TargetResolutionDate *time.Time      `json:"target_resolution_date"`
	IsOverdue            bool            `json:"is_overdue"`
	InWarningWindow      bool            `json:"in_warning_window"`
	HoursRemaining       float64         `json:"hours_remaining"`
	EscalationLevel      int             `json:"escalation_level"`
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
