package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageEvent records the tokens consumed by one completed provider call.
// Rows are append-only.
type UsageEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SubjectID string `gorm:"column:subject_id;type:varchar(255);not null;index:idx_usage_subject_time,priority:1"` // Subject identifier.
	Model     string `gorm:"type:text"`                                                                              // Model name, informational.

	RequestedAt time.Time `gorm:"not null;index:idx_usage_subject_time,priority:2"` // Event timestamp.
	TokenCount  int64     `gorm:"not null;default:0"`                               // Total tokens consumed.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Request mode, prompt/completion split and request id.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
