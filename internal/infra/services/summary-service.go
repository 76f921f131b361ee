package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/interfaces/repository"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/prompts"
)

// SummaryService condenses long conversations so prompts stay short.
type SummaryService struct {
	SummaryRepository repository.Repository[entities.Summary]
	QueryAIService    Iservices.IQueryAIService
	Prompts           *prompts.Prompts
	Table             string
	Threshold         int
	HistoryWindow     int
	Logger            *logger.Logger
	Now               func() time.Time
}

var _ Iservices.ISummaryService = (*SummaryService)(nil)

func NewSummaryService(summaries repository.Repository[entities.Summary], queryAIService Iservices.IQueryAIService, p *prompts.Prompts, table string, threshold, historyWindow int, logger *logger.Logger) *SummaryService {
	return &SummaryService{
		SummaryRepository: summaries,
		QueryAIService:    queryAIService,
		Prompts:           p,
		Table:             table,
		Threshold:         threshold,
		HistoryWindow:     historyWindow,
		Logger:            logger,
		Now:               time.Now,
	}
}

// Latest returns the stored summary of a user, empty when there is none.
func (th *SummaryService) Latest(ctx context.Context, messengerID string) (string, error) {
	summary, err := th.SummaryRepository.FindOne(ctx, th.Table, entities.FieldMessengerID, messengerID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summary.Text, nil
}

// Refresh rewrites the user's summary each time the message count reaches a
// multiple of the threshold. Other counts are a no-op.
func (th *SummaryService) Refresh(ctx context.Context, conversation entities.Conversation) error {
	if th.Threshold <= 0 || conversation.MessageCount == 0 || conversation.MessageCount%th.Threshold != 0 {
		return nil
	}

	existing, err := th.SummaryRepository.FindOne(ctx, th.Table, entities.FieldMessengerID, conversation.MessengerID)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load summary: %w", err)
	}

	prompt, err := prompts.Render(th.Prompts.Summary, map[string]string{
		"Previous": existing.Text,
		"History":  TailHistory(conversation.History, th.HistoryWindow),
	})
	if err != nil {
		return err
	}

	result, err := th.QueryAIService.ExecuteQueryAI(ctx, th.Prompts.SummarySystem, prompt)
	if err != nil {
		return fmt.Errorf("summarize conversation: %w", err)
	}

	summary := entities.Summary{
		MessengerID:  conversation.MessengerID,
		Text:         result.Response,
		MessageCount: conversation.MessageCount,
		Date:         th.Now().Format(dateLayout),
	}
	if found {
		_, err = th.SummaryRepository.Update(ctx, th.Table, existing.ID, summary)
	} else {
		_, err = th.SummaryRepository.Create(ctx, th.Table, summary)
	}
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to save summary for '%s': %v", conversation.MessengerID, err))
		return err
	}

	th.Logger.Info(fmt.Sprintf("Conversation summary refreshed for %s at %d messages", conversation.MessengerID, conversation.MessageCount))
	return nil
}
