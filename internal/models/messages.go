package models

// Inbound event kinds.
const (
	EventText    = "text"
	EventButton  = "button"
	EventContact = "contact"
	EventCommand = "command"
)

// InboundEvent is a transport-neutral user action.
type InboundEvent struct {
	UpdateID     int
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LanguageCode string
	Kind         string
	Payload      string
	MessageID    int
}

type Button struct {
	Text string `json:"text"`
	Data string `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// OutboundMessage is what the dispatcher delivers to a chat.
type OutboundMessage struct {
	ChatID         int64      `json:"chat_id"`
	Text           string     `json:"text"`
	Buttons        [][]Button `json:"buttons,omitempty"`
	RequestContact string     `json:"request_contact,omitempty"`
	RemoveKeyboard bool       `json:"remove_keyboard,omitempty"`
}
