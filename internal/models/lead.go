package models

import "time"

// CurrentLeadSchema is the document version written by this build.
const CurrentLeadSchema = 1

// Lead is one parent talking to the bot, keyed by Telegram user id.
type Lead struct {
	UserID        int64         `json:"user_id"`
	ChatID        int64         `json:"chat_id"`
	Username      string        `json:"username"`
	State         string        `json:"state"`
	Locale        string        `json:"locale"`
	Phone         string        `json:"phone"`
	ParentName    string        `json:"parent_name"`
	CRMContactID  int64         `json:"crm_contact_id"`
	CRMLeadID     int64         `json:"crm_lead_id"`
	Qualification Qualification `json:"qualification"`
	Draft         BookingDraft  `json:"draft"`
	QualifiedAt   *time.Time    `json:"qualified_at"`
	SchemaVersion int           `json:"schema_version"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Qualification holds the answers to the three qualifying questions.
type Qualification struct {
	ChildrenCount int      `json:"children_count"`
	ChildAges     []string `json:"child_ages"`
	Program       string   `json:"program"`
}

// Complete reports whether all answers are collected.
func (q Qualification) Complete() bool {
	return q.ChildrenCount > 0 && len(q.ChildAges) >= q.ChildrenCount && q.Program != ""
}

// BookingDraft keeps tour selections made so far in the booking flow.
type BookingDraft struct {
	Campus string `json:"campus,omitempty"`
	Date   string `json:"date,omitempty"`
}

// NewLead creates a lead at the first step of the flow.
func NewLead(userID, chatID int64, username string, now time.Time) *Lead {
	return &Lead{
		UserID:        userID,
		ChatID:        chatID,
		Username:      username,
		State:         StateAwaitingLanguage,
		SchemaVersion: CurrentLeadSchema,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsQualified reports whether the lead has passed qualification.
func (l *Lead) IsQualified() bool {
	return l.QualifiedAt != nil
}

// Clone returns a deep copy so callers can mutate it freely.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	if l.Qualification.ChildAges != nil {
		c.Qualification.ChildAges = append([]string(nil), l.Qualification.ChildAges...)
	}
	if l.QualifiedAt != nil {
		t := *l.QualifiedAt
		c.QualifiedAt = &t
	}
	return &c
}
