// Package threads specializes the collection access layer for the two fixed
// conversation collections (threads, thread messages) and adds the
// non-generic operations: hiding, branch-and-copy forking, the active-thread
// pointer, and a local offline mirror.
package threads

import (
	"strings"
	"time"
)

// Thread is one conversation. Hidden threads are soft-deleted: excluded from
// default listings, their messages kept.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Hidden    bool      `json:"hidden"`
}

// Role identifies a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one content part of a message.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageMetadata ties a message to its thread and records when it was
// created. Ordering within a thread is by CreatedAt ascending, id tiebreak.
type MessageMetadata struct {
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a thread. Immutable once persisted apart from rare
// metadata patches.
type Message struct {
	ID       string          `json:"id"`
	Role     Role            `json:"role"`
	Parts    []Part          `json:"parts"`
	Metadata MessageMetadata `json:"metadata"`
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// BranchContext tracks an in-progress edit of a previously sent message. It
// is ephemeral: cleared on send, cancel, or reset, never persisted.
type BranchContext struct {
	OriginalThreadID    string
	OriginalMessageID   string
	OriginalMessageText string
}

// maxTitleLen bounds titles derived from message text.
const maxTitleLen = 80

// TitleFromMessage derives a thread title from a message's first text
// content, truncated to a displayable length.
func TitleFromMessage(m Message) string {
	title := strings.TrimSpace(m.Text())
	if len(title) > maxTitleLen {
		title = strings.TrimSpace(title[:maxTitleLen])
	}
	return title
}
