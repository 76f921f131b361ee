package Iservices

import (
	"context"

	"messenger-connector/internal/domain/entities"
)

// IConversationService defines the methods the conversation state service must implement.
type IConversationService interface {
	FindOrInit(ctx context.Context, messengerID string) (entities.Conversation, error)
	Save(ctx context.Context, conversation *entities.Conversation) error
}
