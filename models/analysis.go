package models

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis states. Terminal states are absorbing; a fresh request
// creates a new row instead of retrying.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Analysis is one trust analysis of a product URL. The row is owned
// exclusively by the background task that created it until it reaches
// a terminal state.
type Analysis struct {
	ID        uint      `json:"analysis_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SourceURL string `json:"review_url" gorm:"column:review_url;size:500;not null;index"`
	Status    string `json:"status" gorm:"size:50;not null;default:'queued';index"`

	Verdict    string  `json:"verdict,omitempty" gorm:"size:50"`
	Confidence float64 `json:"confidence" gorm:"type:numeric(5,2)"`

	// Ordered sample lists, stored as JSON arrays of ReviewSample.
	TopSamples   datatypes.JSON `json:"top_reviews,omitempty" gorm:"column:top_reviews"`
	WorstSamples datatypes.JSON `json:"worst_reviews,omitempty" gorm:"column:worst_reviews"`
	Summary      string         `json:"summary,omitempty" gorm:"type:text"`

	ErrorMessage string  `json:"error_message,omitempty" gorm:"size:500"`
	ReviewCount  int     `json:"review_count"`
	AvgRating    float64 `json:"avg_rating"`
}

// TableName sets the table name explicitly.
func (Analysis) TableName() string {
	return "analyses"
}

// Terminal reports whether the analysis reached an absorbing state.
func (a *Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
