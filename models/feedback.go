package models

import "time"

// Feedback is one helpful/not-helpful vote on a finished analysis.
// The retraining job turns these into weak labels: the vote is applied
// uniformly to the sampled reviews of the voted analysis.
type Feedback struct {
	ID         uint      `json:"feedback_id" gorm:"primaryKey"`
	AnalysisID uint      `json:"analysis_id" gorm:"not null;index"`
	Helpful    bool      `json:"helpful"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName sets the table name explicitly.
func (Feedback) TableName() string {
	return "feedbacks"
}
