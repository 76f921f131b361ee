package Iservices

import (
	"context"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/form"
)

type IIntentService interface {
	DetectFlow(text string, currentFlow string) (flow string, cancel bool)
	ExtractFields(ctx context.Context, text string, f form.Form, current string) (dto.ExtractedFields, error)
}
