package Iservices

import (
	"context"

	"messenger-connector/internal/domain/dto"
)

type IQueryAIService interface {
	ExecuteQueryAI(ctx context.Context, systemPrompt string, userPrompt string) (dto.QueryAIResponse, error)
}
