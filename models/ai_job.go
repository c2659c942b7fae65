package models

import "time"

// Retrain job states.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// AIJob tracks one queued model task, currently only retraining. The
// scheduled batch job claims pending rows and drives them to a
// terminal state.
type AIJob struct {
	ID      uint   `json:"job_id" gorm:"primaryKey"`
	ModelID *uint  `json:"model_id,omitempty" gorm:"index"`
	Type    string `json:"type" gorm:"size:50;not null;default:'training'"`
	Status  string `json:"status" gorm:"size:50;not null;default:'pending';index"`

	Logs         string `json:"logs,omitempty" gorm:"type:text"`
	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`

	SubmittedAt time.Time  `json:"submitted_at" gorm:"autoCreateTime"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// TableName sets the table name explicitly.
func (AIJob) TableName() string {
	return "ai_jobs"
}
