package Iservices

import (
	"context"

	"messenger-connector/internal/domain/dto"
)

type IRetrievalService interface {
	Retrieve(ctx context.Context, query string) ([]dto.RetrievedChunk, error)
}
