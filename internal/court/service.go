package court

import (
	"context"
	"strings"
)

type Service interface {
	GetByID(ctx context.Context, id string) (*Court, error)
	List(ctx context.Context, filter Filter) ([]*Court, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*Court, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	return s.repo.GetByID(ctx, id)
}

// List returns courts ordered by id, which is the order assignment tie-breaks on.
func (s *service) List(ctx context.Context, filter Filter) ([]*Court, error) {
	return s.repo.List(ctx, filter)
}
