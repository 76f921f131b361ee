package Iservices

import (
	"context"

	"messenger-connector/internal/domain/entities"
)

type ISummaryService interface {
	Latest(ctx context.Context, messengerID string) (string, error)
	Refresh(ctx context.Context, conversation entities.Conversation) error
}
