package dto

import (
	"time"

	"github.com/noah-isme/gema-activities-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// EnrollmentRequest identifies the participant and activity of an enroll or withdraw.
type EnrollmentRequest struct {
	Activity      string `json:"activity"`
	Email         string `json:"email" validate:"required"`
	CorrelationID string `json:"-"`
	Source        string `json:"-"`
}

// EnrollmentResponse acknowledges a successful enroll or withdraw.
type EnrollmentResponse struct {
	Activity        string `json:"activity"`
	Email           string `json:"email"`
	Action          string `json:"action"`
	Participants    int    `json:"participants"`
	MaxParticipants int    `json:"max_participants"`
	Message         string `json:"message"`
}

// EnrollmentEvent is broadcast after every successful enroll or withdraw.
type EnrollmentEvent struct {
	ID              string    `json:"id"`
	Activity        string    `json:"activity"`
	Email           string    `json:"email"`
	Action          string    `json:"action"`
	Participants    int       `json:"participants"`
	MaxParticipants int       `json:"max_participants"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// EnrollmentLogListRequest defines filters for the enrollment audit trail.
type EnrollmentLogListRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Activity string `json:"activity"`
	Email    string `json:"email"`
	Action   string `json:"action" validate:"omitempty,oneof=enroll withdraw"`
}

// EnrollmentLogResponse is the API view of an audit entry.
type EnrollmentLogResponse struct {
	ID            uint                   `json:"id"`
	Activity      string                 `json:"activity"`
	Email         string                 `json:"email"`
	Action        string                 `json:"action"`
	Participants  int                    `json:"participants"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// EnrollmentLogListResponse wraps a page of audit entries.
type EnrollmentLogListResponse struct {
	Items      []EnrollmentLogResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewEnrollmentLogResponse maps the audit model to its API view.
func NewEnrollmentLogResponse(entry models.EnrollmentLog) EnrollmentLogResponse {
	return EnrollmentLogResponse{
		ID:            entry.ID,
		Activity:      entry.Activity,
		Email:         entry.Email,
		Action:        entry.Action,
		Participants:  entry.Participants,
		CorrelationID: entry.CorrelationID,
		Metadata:      map[string]interface{}(entry.Metadata),
		CreatedAt:     entry.CreatedAt,
	}
}
