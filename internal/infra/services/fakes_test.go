package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/form"
	"messenger-connector/internal/domain/interfaces/repository"
)

// memoryRepository is an in-memory Repository keyed by record id. FindOne
// compares the JSON value of the named field.
type memoryRepository[T any] struct {
	mu      sync.Mutex
	records map[string]map[string]T
	nextID  int
	err     error
}

func newMemoryRepository[T any]() *memoryRepository[T] {
	return &memoryRepository[T]{records: map[string]map[string]T{}}
}

func (m *memoryRepository[T]) table(name string) map[string]T {
	if m.records[name] == nil {
		m.records[name] = map[string]T{}
	}
	return m.records[name]
}

func (m *memoryRepository[T]) seed(table string, entity T) T {
	created, _ := m.Create(context.Background(), table, entity)
	return created
}

func (m *memoryRepository[T]) Create(_ context.Context, table string, entity T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		var zero T
		return zero, m.err
	}
	m.nextID++
	id := fmt.Sprintf("rec%d", m.nextID)
	setTestID(&entity, id)
	m.table(table)[id] = entity
	return entity, nil
}

func (m *memoryRepository[T]) Update(_ context.Context, table string, id string, entity T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.err != nil {
		return zero, m.err
	}
	if _, ok := m.table(table)[id]; !ok {
		return zero, repository.ErrNotFound
	}
	setTestID(&entity, id)
	m.table(table)[id] = entity
	return entity, nil
}

func (m *memoryRepository[T]) Delete(_ context.Context, table string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table(table), id)
	return nil
}

func (m *memoryRepository[T]) FindOne(_ context.Context, table string, field string, value string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.err != nil {
		return zero, m.err
	}
	ids := make([]string, 0, len(m.table(table)))
	for id := range m.table(table) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entity := m.table(table)[id]
		data, _ := json.Marshal(entity)
		var fields map[string]any
		_ = json.Unmarshal(data, &fields)
		if fmt.Sprint(fields[field]) == value {
			return entity, nil
		}
	}
	return zero, repository.ErrNotFound
}

func (m *memoryRepository[T]) FindAll(_ context.Context, table string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []T
	for _, entity := range m.table(table) {
		out = append(out, entity)
	}
	return out, nil
}

func (m *memoryRepository[T]) all(table string) []T {
	out, _ := m.FindAll(context.Background(), table)
	return out
}

func setTestID(entity any, id string) {
	if identifiable, ok := entity.(repository.Identifiable); ok {
		identifiable.SetID(id)
	}
}

// fakeQueryAI answers with canned responses, in order, and records the prompts.
type fakeQueryAI struct {
	mu        sync.Mutex
	responses []string
	err       error
	systems   []string
	prompts   []string
}

func (f *fakeQueryAI) ExecuteQueryAI(_ context.Context, systemPrompt string, userPrompt string) (dto.QueryAIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return dto.QueryAIResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return dto.QueryAIResponse{Response: "ok"}, nil
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return dto.QueryAIResponse{Response: response}, nil
}

func (f *fakeQueryAI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type sentMessage struct {
	to    string
	text  string
	image string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) SendTextMessage(_ context.Context, to, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, text: message})
	return f.err
}

func (f *fakeMessenger) SendImageMessage(_ context.Context, to, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, image: imageURL})
	return f.err
}

// fakeIntent returns fixed extraction results and uses the real keyword detection.
type fakeIntent struct {
	IntentService
	fields dto.ExtractedFields
	err    error
}

func (f *fakeIntent) ExtractFields(_ context.Context, _ string, fm form.Form, _ string) (dto.ExtractedFields, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := dto.ExtractedFields{}
	for key, value := range f.fields {
		if fm.Has(key) {
			out[key] = value
		}
	}
	return out, nil
}

type fakeRetrieval struct {
	chunks []dto.RetrievedChunk
	err    error
}

func (f *fakeRetrieval) Retrieve(context.Context, string) ([]dto.RetrievedChunk, error) {
	return f.chunks, f.err
}
