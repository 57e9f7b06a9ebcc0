package models

import "time"

// CRM outbox task types.
const (
	CRMTaskAddNote    = "add_note"
	CRMTaskUpdateLead = "update_lead"
	CRMTaskCreateTask = "create_task"
)

// Outbox task statuses.
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// CRMTask represents a queued CRM call that is not on the user's critical path.
type CRMTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	UserID      int64      `json:"user_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// ContactFields are the contact attributes pushed to the CRM.
type ContactFields struct {
	Name       string
	Phone      string
	TelegramID int64
	Username   string
	Locale     string
}

// LeadFields are the lead attributes pushed to the CRM. Zero values are
// left untouched on update.
type LeadFields struct {
	Name          string
	ChildrenCount int
	ChildAges     []string
	Program       string
	Campus        string
	TourAt        *time.Time
	TourStatus    string
}

// NotePayload is the JSON payload of add_note tasks.
type NotePayload struct {
	LeadID int64  `json:"lead_id"`
	Text   string `json:"text"`
}

// LeadUpdatePayload is the JSON payload of update_lead tasks.
type LeadUpdatePayload struct {
	LeadID    int64  `json:"lead_id"`
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
}

// TaskPayload is the JSON payload of create_task tasks.
type TaskPayload struct {
	LeadID int64     `json:"lead_id"`
	Text   string    `json:"text"`
	Due    time.Time `json:"due"`
}
