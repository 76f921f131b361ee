package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("record not found")

// Repository is a table-oriented store. The table argument names an Airtable
// table or a Mongo collection depending on the backend.
type Repository[T any] interface {
	Create(ctx context.Context, table string, entity T) (T, error)
	Update(ctx context.Context, table string, id string, entity T) (T, error)
	Delete(ctx context.Context, table string, id string) error
	FindOne(ctx context.Context, table string, field string, value string) (T, error)
	FindAll(ctx context.Context, table string) ([]T, error)
}

// Identifiable entities receive the backend record id after a read or write.
type Identifiable interface {
	SetID(id string)
}
