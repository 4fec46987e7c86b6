package mapper

import (
	"ai-research-be/internal/entity"
	"ai-research-be/internal/model"
)

type ConversationThreadMapper struct{}

func NewConversationThreadMapper() *ConversationThreadMapper {
	return &ConversationThreadMapper{}
}

func (m *ConversationThreadMapper) ToEntity(t *model.ConversationThread) *entity.ConversationThread {
	if t == nil {
		return nil
	}
	return &entity.ConversationThread{
		Id:           t.Id,
		SessionId:    t.SessionId,
		UserId:       t.UserId,
		Role:         t.Role,
		ThreadId:     t.ThreadId,
		Status:       t.Status,
		FallbackMode: t.FallbackMode,
		MessageCount: t.MessageCount,
		CreatedAt:    t.CreatedAt,
		LastUsedAt:   t.LastUsedAt,
	}
}

func (m *ConversationThreadMapper) ToModel(t *entity.ConversationThread) *model.ConversationThread {
	if t == nil {
		return nil
	}
	return &model.ConversationThread{
		Id:           t.Id,
		SessionId:    t.SessionId,
		UserId:       t.UserId,
		Role:         t.Role,
		ThreadId:     t.ThreadId,
		Status:       t.Status,
		FallbackMode: t.FallbackMode,
		MessageCount: t.MessageCount,
		CreatedAt:    t.CreatedAt,
		LastUsedAt:   t.LastUsedAt,
	}
}
