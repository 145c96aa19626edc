package models

import "time"

// User is an account provisioned outside this service and matched by bearer subject.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SubjectID string `gorm:"column:subject_id;type:varchar(255);not null;uniqueIndex"` // Stable subject identifier (JWT sub).
	Email     string `gorm:"type:varchar(255)"`                                         // Contact email, informational.

	Active bool   `gorm:"not null;default:false"`  // Whether the account may issue requests.
	PlanID string `gorm:"type:varchar(255);index"` // Related plan identifier; empty means no plan.

	CurrentPeriodStart *time.Time // Billing period start; nil sums usage from the beginning.
	CurrentPeriodEnd   *time.Time // Billing period end; nil disables the expiry check.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
