package models

import (
	"time"

	"gorm.io/datatypes"
)

// OnboardingProgress is one multi-step form session. The session id is an
// opaque client-minted string; the authority store (Postgres) owns canonical
// timestamps, the cache tier mirrors the record.
type OnboardingProgress struct {
	ID         uint              `json:"-" gorm:"primaryKey"`
	SessionID  string            `json:"session_id" gorm:"uniqueIndex;not null;size:26" validate:"required"`
	StepNumber int               `json:"step_number" gorm:"default:1" validate:"min=1"`
	Data       datatypes.JSONMap `json:"data" gorm:"type:jsonb"`
	UserID     *string           `json:"user_id,omitempty" gorm:"index;size:255"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (OnboardingProgress) TableName() string {
	return "onboarding_progress"
}
