package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/prompts"
)

const (
	conversationsTable = "Conversations"
	productsTable      = "Produits"
	ordersTable        = "Commandes"
	workersTable       = "Liste_Couturiers"
	summariesTable     = "Resumes"
)

type channelFixture struct {
	service       *ChannelService
	conversations *memoryRepository[entities.Conversation]
	products      *memoryRepository[entities.Product]
	orders        *memoryRepository[entities.Order]
	workers       *memoryRepository[entities.Worker]
	summaries     *memoryRepository[entities.Summary]
	llm           *fakeQueryAI
	summaryLLM    *fakeQueryAI
	intent        *fakeIntent
	messenger     *fakeMessenger
	prompts       *prompts.Prompts
}

func newChannelFixture(t *testing.T) *channelFixture {
	t.Helper()
	log := logger.Discard()
	p := prompts.Default()
	now := func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }

	f := &channelFixture{
		conversations: newMemoryRepository[entities.Conversation](),
		products:      newMemoryRepository[entities.Product](),
		orders:        newMemoryRepository[entities.Order](),
		workers:       newMemoryRepository[entities.Worker](),
		summaries:     newMemoryRepository[entities.Summary](),
		llm:           &fakeQueryAI{responses: []string{"رد البوت"}},
		summaryLLM:    &fakeQueryAI{responses: []string{"ملخص"}},
		intent:        &fakeIntent{},
		messenger:     &fakeMessenger{},
		prompts:       p,
	}

	orderService := NewOrderService(f.products, f.orders, productsTable, ordersTable, log)
	orderService.Now = now
	workerService := NewWorkerService(f.workers, workersTable, log)
	workerService.Now = now
	summaryService := NewSummaryService(f.summaries, f.summaryLLM, p, summariesTable, 2, 4000, log)
	summaryService.Now = now

	f.service = NewChannelService(
		log,
		NewConversationService(f.conversations, conversationsTable, log),
		f.intent,
		f.llm,
		orderService,
		workerService,
		summaryService,
		f.messenger,
		p,
	)
	f.service.Now = now
	f.service.HistoryWindow = 4000
	return f
}

func (f *channelFixture) conversation(t *testing.T, id string) entities.Conversation {
	t.Helper()
	conv, err := f.conversations.FindOne(context.Background(), conversationsTable, entities.FieldMessengerID, id)
	require.NoError(t, err)
	return conv
}

func message(sender, text string) dto.IncomingMessage {
	return dto.IncomingMessage{SenderID: sender, MessageID: "mid." + text, Text: text}
}

func TestHandleMessageCreatesConversation(t *testing.T) {
	f := newChannelFixture(t)

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "السلام عليكم")))

	conv := f.conversation(t, "100")
	assert.Equal(t, "👤 المستخدم: السلام عليكم\n🤖 البوت: رد البوت", conv.History)
	assert.Equal(t, "السلام عليكم", conv.LastMessage)
	assert.Equal(t, "2024-03-15", conv.LastContactDate)
	assert.Equal(t, 1, conv.MessageCount)
	assert.Empty(t, conv.Flow)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, sentMessage{to: "100", text: "رد البوت"}, f.messenger.sent[0])
}

func TestHandleMessageAppendsHistory(t *testing.T) {
	f := newChannelFixture(t)
	f.conversations.seed(conversationsTable, entities.Conversation{
		MessengerID:  "100",
		History:      "👤 المستخدم: a\n🤖 البوت: b",
		MessageCount: 4,
	})

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "c")))

	conv := f.conversation(t, "100")
	assert.Equal(t, "👤 المستخدم: a\n🤖 البوت: b\n👤 المستخدم: c\n🤖 البوت: رد البوت", conv.History)
	assert.Equal(t, 5, conv.MessageCount)
	assert.Contains(t, f.llm.prompts[0], "👤 المستخدم: a")
	assert.Len(t, f.conversations.all(conversationsTable), 1)
}

func TestHandleMessageAttachmentOnly(t *testing.T) {
	f := newChannelFixture(t)

	err := f.service.HandleMessage(context.Background(), dto.IncomingMessage{SenderID: "100", MessageID: "m", HasAttachments: true})
	require.NoError(t, err)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, f.prompts.TextOnly, f.messenger.sent[0].text)
	assert.Empty(t, f.conversations.all(conversationsTable))
	assert.Zero(t, f.llm.calls())
}

func TestHandleMessageLLMFailureSendsApology(t *testing.T) {
	f := newChannelFixture(t)
	f.llm.err = errors.New("boom")

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "hello")))

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, f.prompts.Apology, f.messenger.sent[0].text)
	assert.Contains(t, f.conversation(t, "100").History, f.prompts.Apology)
}

func TestHandleMessageStoreFailureIsReturned(t *testing.T) {
	f := newChannelFixture(t)
	f.conversations.err = errors.New("airtable down")

	err := f.service.HandleMessage(context.Background(), message("100", "hello"))
	require.Error(t, err)
	assert.Empty(t, f.messenger.sent)
}

func TestHandleMessageSendFailureStillSaves(t *testing.T) {
	f := newChannelFixture(t)
	f.messenger.err = errors.New("graph down")

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "hello")))
	assert.Equal(t, 1, f.conversation(t, "100").MessageCount)
}

func TestWorkerFlowCollectsFieldsWithoutOverwriting(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleMessage(ctx, message("200", "نحب نخدم خياطة")))
	conv := f.conversation(t, "200")
	assert.Equal(t, entities.FlowWorker, conv.Flow)
	assert.Empty(t, conv.Gender)
	assert.Contains(t, f.llm.prompts[0], f.prompts.Question(entities.FieldGender))

	f.intent.fields = dto.ExtractedFields{entities.FieldGender: "femme", entities.FieldCity: "Oran"}
	require.NoError(t, f.service.HandleMessage(ctx, message("200", "أنا مرا من وهران")))
	conv = f.conversation(t, "200")
	assert.Equal(t, "femme", conv.Gender)
	assert.Equal(t, "Oran", conv.City)

	f.intent.fields = dto.ExtractedFields{entities.FieldCity: "Alger", entities.FieldExperience: "5 ans"}
	require.NoError(t, f.service.HandleMessage(ctx, message("200", "5 ans, Alger")))
	conv = f.conversation(t, "200")
	assert.Equal(t, "Oran", conv.City)
	assert.Equal(t, "5 ans", conv.Experience)
	assert.Empty(t, f.workers.all(workersTable))

	f.intent.fields = dto.ExtractedFields{}
	require.NoError(t, f.service.HandleMessage(ctx, message("200", "0555 12 34 56")))
	conv = f.conversation(t, "200")
	assert.Equal(t, "0555123456", conv.Phone)

	workers := f.workers.all(workersTable)
	require.Len(t, workers, 1)
	assert.Equal(t, entities.Worker{
		ID:               workers[0].ID,
		MessengerID:      "200",
		Gender:           "femme",
		City:             "Oran",
		Experience:       "5 ans",
		Phone:            "0555123456",
		RegistrationDate: "2024-03-15",
	}, workers[0])
	assert.Contains(t, f.llm.prompts[len(f.llm.prompts)-1], "0555123456")
}

func TestInvalidStrictAnswerIsDropped(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	f.conversations.seed(conversationsTable, entities.Conversation{MessengerID: "200", Flow: entities.FlowWorker})

	require.NoError(t, f.service.HandleMessage(ctx, message("200", "ماشي مشكل")))
	assert.Empty(t, f.conversation(t, "200").Gender)
}

func TestOrderFlowPlacesOrderAndDecrementsStock(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	f.products.seed(productsTable, entities.Product{Code: "RB102", Name: "Robe kabyle", Price: 4500, Stock: 5, ImageURL: "https://img.example/rb102.jpg"})

	f.intent.fields = dto.ExtractedFields{entities.FieldProductCode: "rb102"}
	require.NoError(t, f.service.HandleMessage(ctx, message("300", "نحب نطلب RB102")))
	conv := f.conversation(t, "300")
	assert.Equal(t, entities.FlowOrder, conv.Flow)
	assert.Equal(t, "RB102", conv.ProductCode)
	require.Len(t, f.messenger.sent, 2)
	assert.Equal(t, "https://img.example/rb102.jpg", f.messenger.sent[0].image)

	f.intent.fields = dto.ExtractedFields{entities.FieldQuantity: "2", entities.FieldPhone: "0661 22 33 44", entities.FieldAddress: "Cité 5 juillet, Sétif"}
	require.NoError(t, f.service.HandleMessage(ctx, message("300", "2 حبات، 0661223344، سطيف")))

	orders := f.orders.all(ordersTable)
	require.Len(t, orders, 1)
	assert.Equal(t, "300_RB102", orders[0].OrderID)
	assert.Equal(t, 2, orders[0].Quantity)
	assert.Equal(t, entities.OrderStatusPending, orders[0].Status)
	assert.Equal(t, "0661223344", orders[0].Phone)
	assert.Equal(t, "2024-03-15", orders[0].OrderDate)

	products := f.products.all(productsTable)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].Stock)

	conv = f.conversation(t, "300")
	assert.Empty(t, conv.ProductCode)
	assert.Zero(t, conv.Quantity)
	assert.Equal(t, "0661223344", conv.Phone)
	assert.Contains(t, f.llm.prompts[len(f.llm.prompts)-1], "300_RB102")
	assert.Contains(t, f.llm.prompts[len(f.llm.prompts)-1], "9000.00")
}

func TestRepeatedOrderMovesStockByTheDifference(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	f.products.seed(productsTable, entities.Product{Code: "RB102", Name: "Robe", Price: 100, Stock: 10})
	f.conversations.seed(conversationsTable, entities.Conversation{
		MessengerID: "300",
		Flow:        entities.FlowOrder,
		ProductCode: "RB102",
		Phone:       "0661223344",
		Address:     "Sétif",
	})

	f.intent.fields = dto.ExtractedFields{entities.FieldQuantity: "3"}
	require.NoError(t, f.service.HandleMessage(ctx, message("300", "3")))
	assert.Equal(t, 7, f.products.all(productsTable)[0].Stock)

	f.intent.fields = dto.ExtractedFields{entities.FieldProductCode: "RB102", entities.FieldQuantity: "2"}
	require.NoError(t, f.service.HandleMessage(ctx, message("300", "RB102 2")))

	orders := f.orders.all(ordersTable)
	require.Len(t, orders, 1)
	assert.Equal(t, 2, orders[0].Quantity)
	assert.Equal(t, 8, f.products.all(productsTable)[0].Stock)
}

func TestOrderFlowRejectsOutOfStock(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()
	f.products.seed(productsTable, entities.Product{Code: "RB102", Name: "Robe", Price: 100, Stock: 1})
	f.conversations.seed(conversationsTable, entities.Conversation{
		MessengerID: "300",
		Flow:        entities.FlowOrder,
		ProductCode: "RB102",
		Phone:       "0661223344",
		Address:     "Sétif",
	})

	f.intent.fields = dto.ExtractedFields{entities.FieldQuantity: "3"}
	require.NoError(t, f.service.HandleMessage(ctx, message("300", "3")))

	assert.Empty(t, f.orders.all(ordersTable))
	assert.Equal(t, 1, f.products.all(productsTable)[0].Stock)
	conv := f.conversation(t, "300")
	assert.Zero(t, conv.Quantity)
	assert.Equal(t, "RB102", conv.ProductCode)
	assert.Contains(t, f.llm.prompts[0], "(المتوفر: 1)")
}

func TestUnknownProductCodeIsCleared(t *testing.T) {
	f := newChannelFixture(t)
	f.intent.fields = dto.ExtractedFields{entities.FieldProductCode: "ZZ999"}

	require.NoError(t, f.service.HandleMessage(context.Background(), message("300", "commande ZZ999")))

	assert.Empty(t, f.conversation(t, "300").ProductCode)
	assert.Contains(t, f.llm.prompts[0], "ZZ999")
}

func TestCancelResetsOrderFields(t *testing.T) {
	f := newChannelFixture(t)
	f.conversations.seed(conversationsTable, entities.Conversation{
		MessengerID: "300",
		Flow:        entities.FlowOrder,
		ProductCode: "RB102",
		Quantity:    2,
		Phone:       "0661223344",
	})

	require.NoError(t, f.service.HandleMessage(context.Background(), message("300", "annuler")))

	conv := f.conversation(t, "300")
	assert.Empty(t, conv.Flow)
	assert.Empty(t, conv.ProductCode)
	assert.Zero(t, conv.Quantity)
	assert.Equal(t, "0661223344", conv.Phone)
	assert.Zero(t, f.llm.calls())
	assert.Equal(t, f.prompts.Cancelled, f.messenger.sent[0].text)
}

func TestRetrievalAndDraftFeedTheReply(t *testing.T) {
	f := newChannelFixture(t)
	draft := &fakeQueryAI{responses: []string{"draft answer"}}
	f.service.RetrievalService = &fakeRetrieval{chunks: []dto.RetrievedChunk{{Text: "الخدمة من 8 حتى 4"}}}
	f.service.DraftAIService = draft

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "وقتاش الخدمة؟")))

	require.Equal(t, 1, draft.calls())
	assert.Contains(t, draft.prompts[0], "الخدمة من 8 حتى 4")
	assert.Contains(t, f.llm.prompts[0], "الخدمة من 8 حتى 4")
	assert.Contains(t, f.llm.prompts[0], "draft answer")
}

func TestRetrievalFailureDoesNotBlockReply(t *testing.T) {
	f := newChannelFixture(t)
	f.service.RetrievalService = &fakeRetrieval{err: errors.New("index down")}

	require.NoError(t, f.service.HandleMessage(context.Background(), message("100", "hello")))
	assert.Equal(t, "رد البوت", f.messenger.sent[0].text)
}

func TestSummaryRefreshedAtThreshold(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleMessage(ctx, message("100", "one")))
	assert.Empty(t, f.summaries.all(summariesTable))

	require.NoError(t, f.service.HandleMessage(ctx, message("100", "two")))
	summaries := f.summaries.all(summariesTable)
	require.Len(t, summaries, 1)
	assert.Equal(t, "ملخص", summaries[0].Text)
	assert.Equal(t, 2, summaries[0].MessageCount)

	require.NoError(t, f.service.HandleMessage(ctx, message("100", "three")))
	assert.True(t, strings.Contains(f.llm.prompts[2], "ملخص"))
}
