package Iservices

import (
	"context"

	"messenger-connector/internal/domain/entities"
)

type IOrderService interface {
	FindProduct(ctx context.Context, code string) (entities.Product, error)
	PlaceOrder(ctx context.Context, conversation entities.Conversation) (entities.Order, entities.Product, error)
}

type IWorkerService interface {
	Register(ctx context.Context, conversation entities.Conversation) (entities.Worker, error)
}
