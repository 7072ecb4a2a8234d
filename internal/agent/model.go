package agent

import "findash/internal/alert"

type Mode string

const (
	ModeAPI  Mode = "api"
	ModeMock Mode = "mock"
)

// Card is a structured recommendation the console renders with buttons.
type Card struct {
	Type        string                 `json:"type"`
	Variant     string                 `json:"variant"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Actions     []alert.Recommendation `json:"actions"`
}

func NewCard(variant, title, description string, actions ...alert.Recommendation) *Card {
	return &Card{Type: "card", Variant: variant, Title: title, Description: description, Actions: actions}
}

// Reply is the answer to one query. Response holds either a string or a *Card.
type Reply struct {
	Response      interface{} `json:"response"`
	Data          interface{} `json:"data,omitempty"`
	SessionID     string      `json:"session_id"`
	TookMs        int64       `json:"took_ms"`
	Mode          Mode        `json:"mode"`
	ExecutedTools []string    `json:"executed_tools"`
}
