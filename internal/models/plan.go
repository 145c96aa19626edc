package models

import "time"

// Plan defines the token ceiling applied to each billing period.
type Plan struct {
	PlanID string `gorm:"column:plan_id;type:varchar(255);primaryKey"` // Plan identifier.

	Name       string `gorm:"type:varchar(255)"`     // Display name.
	Active     bool   `gorm:"not null;default:true"` // Whether the plan can be used.
	TokenLimit int64  `gorm:"not null;default:0"`    // Tokens allowed per billing period; 0 means unset.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
