// Package conversation persists council exchanges. Each conversation is
// one JSON document keyed by a generated id; an assistant message carries
// the full three-stage record alongside the final answer so a client can
// re-render the whole deliberation later.
package conversation

import (
	"context"
	"time"

	"github.com/llmcouncil/councild/internal/council"
)

// Message is one turn of a conversation. User turns carry only Content;
// assistant turns also carry the stage records that produced it.
type Message struct {
	Role    string                    `json:"role"`
	Content string                    `json:"content"`
	Stage1  []council.StageResponse   `json:"stage1,omitempty"`
	Stage2  []council.RankingJudgment `json:"stage2,omitempty"`
	Stage3  *council.Synthesis        `json:"stage3,omitempty"`
}

// Conversation is the full stored document.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// Metadata is the listing view of a conversation: everything but the
// messages themselves.
type Metadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// DefaultTitle is assigned at creation and replaced once title generation
// succeeds.
const DefaultTitle = "New Conversation"

// Store is the persistence boundary for conversations.
type Store interface {
	// Create makes a new empty conversation with a generated id.
	Create(ctx context.Context) (*Conversation, error)
	// Get returns a conversation or errors.ErrConversationNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)
	// List returns metadata for all conversations, newest first.
	List(ctx context.Context) ([]Metadata, error)
	// AppendMessage appends one turn and returns the updated conversation.
	AppendMessage(ctx context.Context, id string, msg Message) (*Conversation, error)
	// SetTitle replaces the conversation title.
	SetTitle(ctx context.Context, id, title string) error
	// Delete removes a conversation. Deleting an unknown id errors with
	// errors.ErrConversationNotFound.
	Delete(ctx context.Context, id string) error
}
