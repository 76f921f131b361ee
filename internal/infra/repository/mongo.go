package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"messenger-connector/internal/domain/interfaces/repository"
	"messenger-connector/internal/infra/metrics"
)

// MongoRepository stores entities of type T with one collection per table.
// Documents use a string uuid as _id so record ids look the same on both backends.
type MongoRepository[T any] struct {
	mongo   *mongo.Database
	metrics *metrics.Metrics
}

func NewMongoRepository[T any](mongo *mongo.Database, m *metrics.Metrics) *MongoRepository[T] {
	return &MongoRepository[T]{mongo: mongo, metrics: m}
}

var _ repository.Repository[struct{}] = (*MongoRepository[struct{}])(nil)

func (r *MongoRepository[T]) Create(ctx context.Context, collectionName string, entity T) (T, error) {
	start := time.Now()
	collection := r.mongo.Collection(collectionName)

	doc, err := toDocument(entity)
	if err != nil {
		return entity, err
	}
	id := uuid.NewString()
	doc["_id"] = id

	_, err = collection.InsertOne(ctx, doc)
	r.observe(collectionName, "create", start, err)
	if err != nil {
		return entity, fmt.Errorf("mongo insert into %s: %w", collectionName, err)
	}
	setID(&entity, id)
	return entity, nil
}

func (r *MongoRepository[T]) Update(ctx context.Context, collectionName string, id string, entity T) (T, error) {
	start := time.Now()
	collection := r.mongo.Collection(collectionName)

	doc, err := toDocument(entity)
	if err != nil {
		return entity, err
	}
	// _id is immutable; the filter already pins it.
	delete(doc, "_id")

	res, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": doc})
	r.observe(collectionName, "update", start, err)
	if err != nil {
		return entity, fmt.Errorf("mongo update in %s: %w", collectionName, err)
	}
	if res.MatchedCount == 0 {
		return entity, repository.ErrNotFound
	}
	setID(&entity, id)
	return entity, nil
}

func (r *MongoRepository[T]) Delete(ctx context.Context, collectionName string, id string) error {
	start := time.Now()
	collection := r.mongo.Collection(collectionName)
	_, err := collection.DeleteOne(ctx, bson.M{"_id": id})
	r.observe(collectionName, "delete", start, err)
	return err
}

func (r *MongoRepository[T]) FindOne(ctx context.Context, collectionName string, field string, value string) (T, error) {
	start := time.Now()
	var entity T
	collection := r.mongo.Collection(collectionName)

	var raw bson.M
	err := collection.FindOne(ctx, bson.M{field: value}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		r.observe(collectionName, "find", start, nil)
		return entity, repository.ErrNotFound
	}
	r.observe(collectionName, "find", start, err)
	if err != nil {
		return entity, fmt.Errorf("mongo find in %s: %w", collectionName, err)
	}
	return fromDocument[T](raw)
}

func (r *MongoRepository[T]) FindAll(ctx context.Context, collectionName string) ([]T, error) {
	start := time.Now()
	collection := r.mongo.Collection(collectionName)
	cursor, err := collection.Find(ctx, bson.D{})
	r.observe(collectionName, "list", start, err)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entities []T
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		entity, err := fromDocument[T](raw)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, cursor.Err()
}

func (r *MongoRepository[T]) observe(collection, op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.StoreRequests.WithLabelValues(collection, op, metrics.Status(err)).Inc()
	r.metrics.StoreLatency.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}

func toDocument(entity any) (bson.M, error) {
	data, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

func fromDocument[T any](doc bson.M) (T, error) {
	var entity T
	data, err := bson.Marshal(doc)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := bson.Unmarshal(data, &entity); err != nil {
		return entity, fmt.Errorf("failed to decode document: %w", err)
	}
	if id, ok := doc["_id"].(string); ok {
		setID(&entity, id)
	}
	return entity, nil
}

func setID[T any](entity *T, id string) {
	if identifiable, ok := any(entity).(repository.Identifiable); ok {
		identifiable.SetID(id)
	}
}
