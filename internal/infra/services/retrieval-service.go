package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/vectorstore"
)

// ErrIndexNotReady is returned by Retrieve before the first successful build.
var ErrIndexNotReady = errors.New("retrieval index not built")

// RetrievalService answers similarity queries over the knowledge folder.
type RetrievalService struct {
	Logger   *logger.Logger
	Dir      string
	TopK     int
	splitter *vectorstore.Splitter
	embedder vectorstore.Embedder
	cache    *vectorstore.Cache
	index    atomic.Pointer[vectorstore.Index]
}

var _ Iservices.IRetrievalService = (*RetrievalService)(nil)

func NewRetrievalService(dir string, topK int, splitter *vectorstore.Splitter, embedder vectorstore.Embedder, cache *vectorstore.Cache, logger *logger.Logger) *RetrievalService {
	return &RetrievalService{
		Logger:   logger.With(logrus.Fields{"component": "retrieval"}),
		Dir:      dir,
		TopK:     topK,
		splitter: splitter,
		embedder: embedder,
		cache:    cache,
	}
}

// Build loads the knowledge folder and replaces the index. On failure the
// previous index stays in service.
func (th *RetrievalService) Build(ctx context.Context) (vectorstore.BuildStats, error) {
	docs, err := vectorstore.LoadDocuments(th.Dir)
	if err != nil {
		return vectorstore.BuildStats{}, err
	}

	chunks, stats, err := vectorstore.Build(ctx, docs, th.splitter, th.embedder, th.cache)
	if err != nil {
		return stats, err
	}

	th.index.Store(vectorstore.NewIndex(chunks))
	th.Logger.Info("Knowledge index built", logrus.Fields{
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
		"cached":    stats.Cached,
		"embedded":  stats.Embedded,
	})
	return stats, nil
}

// Retrieve returns the TopK chunks closest to query.
func (th *RetrievalService) Retrieve(ctx context.Context, query string) ([]dto.RetrievedChunk, error) {
	index := th.index.Load()
	if index == nil {
		return nil, ErrIndexNotReady
	}
	if index.Len() == 0 {
		return nil, nil
	}

	vectors, err := th.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}

	matches := index.Search(vectors[0], th.TopK)
	chunks := make([]dto.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, dto.RetrievedChunk{Text: m.Text, Source: m.Source, Score: m.Score})
	}
	return chunks, nil
}

// Watch rebuilds the index whenever the knowledge folder changes, until ctx is done.
func (th *RetrievalService) Watch(ctx context.Context) error {
	return vectorstore.Watch(ctx, th.Dir, 2*time.Second,
		func() {
			th.Logger.Info(fmt.Sprintf("Knowledge folder %s changed, rebuilding index", th.Dir))
			if _, err := th.Build(ctx); err != nil {
				th.Logger.Error(fmt.Sprintf("Failed to rebuild knowledge index: %v", err))
			}
		},
		func(err error) {
			th.Logger.Warn(fmt.Sprintf("Knowledge folder watcher error: %v", err))
		},
	)
}
