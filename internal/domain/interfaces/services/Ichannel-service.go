package Iservices

import (
	"context"

	"messenger-connector/internal/domain/dto"
)

type IChannelService interface {
	HandleMessage(ctx context.Context, message dto.IncomingMessage) error
}
