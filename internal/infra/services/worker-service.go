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
)

// WorkerService keeps the list of tailors who applied through Messenger.
type WorkerService struct {
	WorkerRepository repository.Repository[entities.Worker]
	Table            string
	Logger           *logger.Logger
	Now              func() time.Time
}

var _ Iservices.IWorkerService = (*WorkerService)(nil)

func NewWorkerService(workers repository.Repository[entities.Worker], table string, logger *logger.Logger) *WorkerService {
	return &WorkerService{WorkerRepository: workers, Table: table, Logger: logger, Now: time.Now}
}

// Register stores the worker form of the conversation, once per Messenger user.
func (ws *WorkerService) Register(ctx context.Context, conversation entities.Conversation) (entities.Worker, error) {
	worker := entities.Worker{
		MessengerID:      conversation.MessengerID,
		Gender:           conversation.Gender,
		City:             conversation.City,
		Experience:       conversation.Experience,
		Phone:            conversation.Phone,
		RegistrationDate: ws.Now().Format(dateLayout),
	}

	existing, err := ws.WorkerRepository.FindOne(ctx, ws.Table, entities.FieldMessengerID, conversation.MessengerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		worker, err = ws.WorkerRepository.Create(ctx, ws.Table, worker)
	case err == nil:
		worker.RegistrationDate = existing.RegistrationDate
		worker, err = ws.WorkerRepository.Update(ctx, ws.Table, existing.ID, worker)
	}
	if err != nil {
		ws.Logger.Error(fmt.Sprintf("Failed to register worker '%s': %v", conversation.MessengerID, err))
		return entities.Worker{}, err
	}
	return worker, nil
}
