package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/form"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/provider"
	"messenger-connector/internal/prompts"
)

// ChannelService runs one Messenger message through the bot: state lookup,
// form filling, retrieval, reply generation, business side effects, reply and
// state save.
type ChannelService struct {
	Logger              *logger.Logger
	ConversationService Iservices.IConversationService
	IntentService       Iservices.IIntentService
	QueryAIService      Iservices.IQueryAIService
	OrderService        Iservices.IOrderService
	WorkerService       Iservices.IWorkerService
	SummaryService      Iservices.ISummaryService
	MessengerProvider   provider.IMessengerProvider
	Prompts             *prompts.Prompts

	// Optional: nil disables retrieval and the draft answer.
	RetrievalService Iservices.IRetrievalService
	DraftAIService   Iservices.IQueryAIService

	HistoryWindow int
	Now           func() time.Time
}

var _ Iservices.IChannelService = (*ChannelService)(nil)

func NewChannelService(
	logger *logger.Logger,
	conversationService Iservices.IConversationService,
	intentService Iservices.IIntentService,
	queryAIService Iservices.IQueryAIService,
	orderService Iservices.IOrderService,
	workerService Iservices.IWorkerService,
	summaryService Iservices.ISummaryService,
	messengerProvider provider.IMessengerProvider,
	p *prompts.Prompts,
) *ChannelService {
	return &ChannelService{
		Logger:              logger,
		ConversationService: conversationService,
		IntentService:       intentService,
		QueryAIService:      queryAIService,
		OrderService:        orderService,
		WorkerService:       workerService,
		SummaryService:      summaryService,
		MessengerProvider:   messengerProvider,
		Prompts:             p,
		Now:                 time.Now,
	}
}

// turn carries what one message produced while it goes through the pipeline.
type turn struct {
	text         string
	flowSwitched bool
	outcome      []string
	nextQuestion string
}

// HandleMessage processes one user message. A conversation lookup or save
// failure is returned; every other failure is logged and degrades the reply.
func (cs *ChannelService) HandleMessage(ctx context.Context, message dto.IncomingMessage) error {
	to := message.SenderID
	text := strings.TrimSpace(message.Text)

	if text == "" {
		if message.HasAttachments {
			cs.send(ctx, to, cs.Prompts.TextOnly)
		}
		return nil
	}

	conversation, err := cs.ConversationService.FindOrInit(ctx, to)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	var reply string
	flow, cancel := cs.IntentService.DetectFlow(text, conversation.Flow)
	if cancel {
		if conversation.Flow != "" {
			form.ForFlow(conversation.Flow).Reset(&conversation, cs.cancellableFields(conversation.Flow)...)
		}
		conversation.Flow = ""
		reply = cs.Prompts.Cancelled
	} else {
		t := &turn{text: text, flowSwitched: flow != conversation.Flow}
		conversation.Flow = flow

		cs.fillForm(ctx, &conversation, t)
		reply = cs.generateReply(ctx, &conversation, t)
	}

	cs.send(ctx, to, reply)

	conversation.History = AppendExchange(conversation.History, text, reply)
	conversation.LastMessage = text
	conversation.LastContactDate = cs.Now().Format(dateLayout)
	conversation.MessageCount++
	if err := cs.ConversationService.Save(ctx, &conversation); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	if cs.SummaryService != nil {
		if err := cs.SummaryService.Refresh(ctx, conversation); err != nil {
			cs.Logger.Warn(fmt.Sprintf("Failed to refresh summary for %s: %v", to, err))
		}
	}
	return nil
}

// cancellableFields are the fields a cancel clears. Contact details are kept
// so a later form does not ask for them again.
func (cs *ChannelService) cancellableFields(flow string) []string {
	if flow == entities.FlowOrder {
		return []string{entities.FieldProductCode, entities.FieldQuantity}
	}
	return []string{entities.FieldGender, entities.FieldCity, entities.FieldExperience}
}

// fillForm stores the fields found in the message and, when the form became
// complete with this message, runs the order or worker registration.
func (cs *ChannelService) fillForm(ctx context.Context, conversation *entities.Conversation, t *turn) {
	if conversation.Flow == "" {
		return
	}
	f := form.ForFlow(conversation.Flow)
	next, missing := f.NextMissing(conversation)
	if !missing {
		return
	}

	values, err := cs.IntentService.ExtractFields(ctx, t.text, f, next.Key)
	if err != nil {
		cs.Logger.Warn(fmt.Sprintf("Field extraction failed, using the raw answer: %v", err))
	}
	if len(values) == 0 && !t.flowSwitched {
		values = dto.ExtractedFields{next.Key: t.text}
	}

	applied := f.Apply(conversation, values)
	if len(applied) > 0 {
		cs.Logger.Info(fmt.Sprintf("Collected %s for %s", strings.Join(applied, ", "), conversation.MessengerID), logrus.Fields{"flow": conversation.Flow})
	}

	if contains(applied, entities.FieldProductCode) {
		cs.checkProduct(ctx, conversation, t)
	}

	if len(applied) > 0 && f.Complete(conversation) {
		switch conversation.Flow {
		case entities.FlowOrder:
			cs.placeOrder(ctx, conversation, t)
		case entities.FlowWorker:
			cs.registerWorker(ctx, conversation, t)
		}
	}

	if next, missing := f.NextMissing(conversation); missing {
		t.nextQuestion = cs.Prompts.Question(next.Key)
	}
}

func (cs *ChannelService) checkProduct(ctx context.Context, conversation *entities.Conversation, t *turn) {
	product, err := cs.OrderService.FindProduct(ctx, conversation.ProductCode)
	if errors.Is(err, ErrUnknownProduct) {
		t.outcome = append(t.outcome, cs.render(cs.Prompts.UnknownProduct, map[string]any{"Code": conversation.ProductCode}))
		conversation.ProductCode = ""
		return
	}
	if err != nil {
		cs.Logger.Warn(fmt.Sprintf("Product lookup for %s failed: %v", conversation.ProductCode, err))
		return
	}
	if product.ImageURL != "" {
		if err := cs.MessengerProvider.SendImageMessage(ctx, conversation.MessengerID, product.ImageURL); err != nil {
			cs.Logger.Error(fmt.Sprintf("Failed to send product image to %s: %s", conversation.MessengerID, err.Error()))
		}
	}
}

func (cs *ChannelService) placeOrder(ctx context.Context, conversation *entities.Conversation, t *turn) {
	order, product, err := cs.OrderService.PlaceOrder(ctx, *conversation)
	switch {
	case errors.Is(err, ErrOutOfStock):
		t.outcome = append(t.outcome, cs.render(cs.Prompts.OutOfStock, map[string]any{"Name": product.Name, "Stock": product.Stock}))
		conversation.Quantity = 0
		return
	case errors.Is(err, ErrUnknownProduct):
		t.outcome = append(t.outcome, cs.render(cs.Prompts.UnknownProduct, map[string]any{"Code": conversation.ProductCode}))
		conversation.ProductCode = ""
		return
	case err != nil && order.OrderID == "":
		cs.Logger.Error(fmt.Sprintf("Failed to place order for %s: %v", conversation.MessengerID, err))
		t.outcome = append(t.outcome, cs.Prompts.Apology)
		return
	}

	t.outcome = append(t.outcome, cs.render(cs.Prompts.OrderConfirmed, map[string]any{
		"OrderID":  order.OrderID,
		"Quantity": order.Quantity,
		"Name":     product.Name,
		"Total":    fmt.Sprintf("%.2f", product.Price*float64(order.Quantity)),
		"Phone":    order.Phone,
	}))
	form.OrderForm.Reset(conversation, entities.FieldProductCode, entities.FieldQuantity)
}

func (cs *ChannelService) registerWorker(ctx context.Context, conversation *entities.Conversation, t *turn) {
	worker, err := cs.WorkerService.Register(ctx, *conversation)
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to register worker %s: %v", conversation.MessengerID, err))
		t.outcome = append(t.outcome, cs.Prompts.Apology)
		return
	}
	t.outcome = append(t.outcome, cs.render(cs.Prompts.WorkerRegistered, map[string]any{"Phone": worker.Phone}))
}

// generateReply asks the model for the answer to send. When the model fails,
// the outcome of the turn is sent as is, or the apology when there is none.
func (cs *ChannelService) generateReply(ctx context.Context, conversation *entities.Conversation, t *turn) string {
	var contextText, draft string
	if cs.RetrievalService != nil {
		chunks, err := cs.RetrievalService.Retrieve(ctx, t.text)
		if err != nil {
			cs.Logger.Warn(fmt.Sprintf("Retrieval failed: %v", err))
		}
		contextText = joinChunks(chunks)
	}

	if cs.DraftAIService != nil && contextText != "" {
		prompt := cs.render(cs.Prompts.Draft, map[string]any{"Context": contextText, "UserMessage": t.text})
		result, err := cs.DraftAIService.ExecuteQueryAI(ctx, cs.Prompts.DraftSystem, prompt)
		if err != nil {
			cs.Logger.Warn(fmt.Sprintf("Draft answer failed: %v", err))
		} else {
			draft = result.Response
		}
	}

	var summary string
	if cs.SummaryService != nil {
		var err error
		summary, err = cs.SummaryService.Latest(ctx, conversation.MessengerID)
		if err != nil {
			cs.Logger.Warn(fmt.Sprintf("Failed to load summary for %s: %v", conversation.MessengerID, err))
		}
	}

	outcome := strings.Join(t.outcome, "\n")
	prompt := cs.render(cs.Prompts.Reply, map[string]any{
		"Summary":      summary,
		"History":      TailHistory(conversation.History, cs.HistoryWindow),
		"Context":      contextText,
		"Draft":        draft,
		"Known":        knownFields(conversation),
		"Outcome":      outcome,
		"NextQuestion": t.nextQuestion,
		"UserMessage":  t.text,
	})

	result, err := cs.QueryAIService.ExecuteQueryAI(ctx, cs.Prompts.System, prompt)
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to execute AI query: %s", err.Error()))
		if outcome != "" {
			return strings.TrimSpace(outcome + "\n" + t.nextQuestion)
		}
		return cs.Prompts.Apology
	}
	return result.Response
}

func (cs *ChannelService) send(ctx context.Context, to, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := cs.MessengerProvider.SendTextMessage(ctx, to, text); err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to send Messenger message to %s: %s", to, err.Error()))
	}
}

func (cs *ChannelService) render(text string, data any) string {
	out, err := prompts.Render(text, data)
	if err != nil {
		cs.Logger.Error(fmt.Sprintf("Failed to render prompt: %v", err))
		return ""
	}
	return out
}

func knownFields(conversation *entities.Conversation) string {
	if conversation.Flow == "" {
		return ""
	}
	var lines []string
	for _, key := range form.ForFlow(conversation.Flow).Keys() {
		if value := conversation.Field(key); value != "" {
			lines = append(lines, key+": "+value)
		}
	}
	return strings.Join(lines, "\n")
}

func joinChunks(chunks []dto.RetrievedChunk) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
