package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConversationThread maps a (session, role) pair to a thread handle on the
// remote completion service, or to a locally-generated fallback handle when
// the remote service was unreachable at creation time.
type ConversationThread struct {
	Id           uuid.UUID
	SessionId    string
	UserId       string
	Role         string
	ThreadId     string
	Status       string
	FallbackMode bool
	MessageCount int
	CreatedAt    time.Time
	LastUsedAt   time.Time
}
