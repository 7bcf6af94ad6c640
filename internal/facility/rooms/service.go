package rooms

import (
	"context"
	"fmt"

	"github.com/medisys/hms/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Room, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Room, error) {
	if id <= 0 {
		return Room{}, fmt.Errorf("%w: invalid room id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, room Room) (Room, error) {
	room = normalize(room)
	if err := validate(room); err != nil {
		return Room{}, err
	}
	return s.repo.Create(ctx, room)
}

func (s *Service) Update(ctx context.Context, id int64, room Room) (Room, error) {
	if id <= 0 {
		return Room{}, fmt.Errorf("%w: invalid room id", httpx.ErrValidation)
	}
	room = normalize(room)
	if err := validate(room); err != nil {
		return Room{}, err
	}
	return s.repo.Update(ctx, id, room)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid room id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
