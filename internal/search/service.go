package search

import (
	"context"

	"go.uber.org/zap"
)

const (
	EngineMeili  = "meilisearch"
	EngineMemory = "memory"
)

// Engine is one search backend.
type Engine interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Index is an engine that can be rebuilt from a corpus.
type Index interface {
	Engine
	Replace(c Corpus) error
}

// Loader reads a fresh corpus from the sheet.
type Loader func(ctx context.Context) (Corpus, error)

// Service tries the index first and falls back to scanning fresh rows.
type Service struct {
	index  Index
	logger *zap.Logger
}

// NewService creates a search service. index may be nil when Meilisearch is not configured.
func NewService(index Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, logger: logger.Named("search")}
}

func (s *Service) IndexHealthy() bool {
	return s.index != nil && s.index.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query, load Loader) (Response, error) {
	if s.IndexHealthy() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMeili}, nil
		}
		s.logger.Warn("index search failed, falling back to memory", zap.Error(err))
	}

	corpus, err := load(ctx)
	if err != nil {
		return Response{}, err
	}
	results, total, _ := NewMemory(corpus).Search(q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMemory}, nil
}

// Reindex rebuilds the index from fresh rows. Without a healthy index it
// reports false and does nothing.
func (s *Service) Reindex(ctx context.Context, load Loader) (bool, error) {
	if !s.IndexHealthy() {
		return false, nil
	}
	corpus, err := load(ctx)
	if err != nil {
		return false, err
	}
	if err := s.index.Replace(corpus); err != nil {
		return false, err
	}
	s.logger.Info("reindexed",
		zap.Int("migrations", len(corpus.Migrations)),
		zap.Int("customers", len(corpus.Customers)),
	)
	return true, nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
