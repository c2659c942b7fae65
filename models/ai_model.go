package models

import "time"

// AIModel is one versioned scoring artifact. At most one row is
// active at any time; the active row decides which weights a worker
// loads. Rows are written by the retraining job, only read here.
type AIModel struct {
	ID        uint      `json:"model_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ModelName   string  `json:"model_name" gorm:"size:100;not null"`
	Version     string  `json:"version" gorm:"size:50;not null"`
	ArtifactURL string  `json:"artifact_url" gorm:"size:500;not null"`
	Description string  `json:"description,omitempty" gorm:"type:text"`
	Accuracy    float64 `json:"accuracy,omitempty"`
	Active      bool    `json:"active" gorm:"default:false;index"`
}

// TableName sets the table name explicitly.
func (AIModel) TableName() string {
	return "ai_models"
}
