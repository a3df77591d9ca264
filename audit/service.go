// api/audit/service.go
package audit

import (
	"context"
	"time"
)

type Service interface {
	RecordFetch(ctx context.Context, record FetchRecord) error
	QueryFetches(ctx context.Context, from, to time.Time, resourceKey string) ([]FetchRecord, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) RecordFetch(ctx context.Context, record FetchRecord) error {
	return s.repo.RecordFetch(ctx, record)
}

func (s *service) QueryFetches(ctx context.Context, from, to time.Time, resourceKey string) ([]FetchRecord, error) {
	return s.repo.QueryFetches(ctx, from, to, resourceKey)
}
