package model

import (
	"time"

	"github.com/google/uuid"
)

type ConversationThread struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId    string    `gorm:"type:text;not null;index:idx_threads_session_role"`
	Role         string    `gorm:"type:text;not null;index:idx_threads_session_role"`
	UserId       string    `gorm:"type:text;not null;index"`
	ThreadId     string    `gorm:"type:text;not null"`
	Status       string    `gorm:"type:text;not null;index"`
	FallbackMode bool      `gorm:"default:false"`
	MessageCount int       `gorm:"default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	LastUsedAt   time.Time `gorm:"not null;index"`
}

func (ConversationThread) TableName() string {
	return "conversation_threads"
}
