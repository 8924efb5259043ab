package db

import "time"

// Prompt visibilities.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

type ChannelGuard struct {
	ID                 int64  `json:"id"`
	ChannelDisplayName string `json:"channel_display_name"`
	ShouldValidate     bool   `json:"should_validate"`
	Prompt             string `json:"prompt"`
	CreatedBy          string `json:"created_by"`
}

type Prompt struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	Visibility string `json:"visibility"`
	CreatedBy  string `json:"created_by"`
}

// ScheduledPrompt is a one-shot request to apply a prompt to a thread at the end of the day.
type ScheduledPrompt struct {
	ID         int64     `json:"id"`
	ThreadID   string    `json:"thread_id"`
	ChannelID  string    `json:"channel_id"`
	MessageID  string    `json:"message_id"`
	SenderName string    `json:"sender_name"`
	PromptName string    `json:"prompt_name"`
	CreatedAt  time.Time `json:"created_at"`
	RunDate    time.Time `json:"run_date"`
	Finished   bool      `json:"finished"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Reminder fires a prompt into a channel at a time of day on a set of weekdays.
type Reminder struct {
	ID          int64     `json:"id"`
	ChannelID   string    `json:"channel_id"`
	MessageID   string    `json:"message_id"`
	PromptName  string    `json:"prompt_name"`
	Time        string    `json:"time"`
	Repeat      bool      `json:"repeat"`
	Days        []string  `json:"days"`
	WithHistory bool      `json:"with_history"`
	CreatedBy   string    `json:"created_by"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	RunDate     time.Time `json:"run_date"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

type FAQ struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
