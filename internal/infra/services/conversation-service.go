package services

import (
	"context"
	"errors"
	"fmt"

	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/interfaces/repository"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
)

// ConversationService is the service responsible for the per-user conversation state.
type ConversationService struct {
	ConversationRepository repository.Repository[entities.Conversation]
	Table                  string
	Logger                 *logger.Logger
}

var _ Iservices.IConversationService = (*ConversationService)(nil)

// NewConversationService creates a new instance of the service.
func NewConversationService(conversationRepository repository.Repository[entities.Conversation], table string, logger *logger.Logger) *ConversationService {
	return &ConversationService{
		ConversationRepository: conversationRepository,
		Table:                  table,
		Logger:                 logger,
	}
}

// FindOrInit returns the stored conversation of messengerID, or a new unsaved
// one when the user has never written before.
func (cs *ConversationService) FindOrInit(ctx context.Context, messengerID string) (entities.Conversation, error) {
	conversation, err := cs.ConversationRepository.FindOne(ctx, cs.Table, entities.FieldMessengerID, messengerID)
	if errors.Is(err, repository.ErrNotFound) {
		cs.Logger.Info(fmt.Sprintf("Conversation not found for %s. Initializing new conversation.", messengerID))
		return entities.Conversation{MessengerID: messengerID}, nil
	}
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to find conversation for '%s': %v", messengerID, err))
		return entities.Conversation{}, err
	}
	return conversation, nil
}

// Save creates the conversation when it has no record id yet and updates it otherwise.
func (cs *ConversationService) Save(ctx context.Context, conversation *entities.Conversation) error {
	if conversation.ID == "" {
		created, err := cs.ConversationRepository.Create(ctx, cs.Table, *conversation)
		if err != nil {
			cs.Logger.Error(fmt.Sprintf("Failed to create conversation for '%s': %v", conversation.MessengerID, err))
			return err
		}
		conversation.ID = created.ID
		return nil
	}

	if _, err := cs.ConversationRepository.Update(ctx, cs.Table, conversation.ID, *conversation); err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to update conversation '%s': %v", conversation.ID, err))
		return err
	}
	return nil
}
