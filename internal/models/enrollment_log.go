package models

import (
	"time"

	"gorm.io/datatypes"
)

// EnrollmentLog records a completed enroll or withdraw for auditing.
type EnrollmentLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Activity      string            `gorm:"size:128;not null;index" json:"activity"`
	Email         string            `gorm:"size:255;not null;index" json:"email"`
	Action        string            `gorm:"size:32;not null" json:"action"`
	Participants  int               `gorm:"not null" json:"participants"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
