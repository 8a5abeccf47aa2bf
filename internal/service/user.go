package service

import (
	"context"
	"fmt"

	"github.com/sokolovdm/socialnet/internal/models"
	"github.com/sokolovdm/socialnet/internal/repo"
)

type UserService struct {
	Repo *repo.GormRepo
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.Repo.ListUsers(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.UserTokens, error) {
	row, err := s.Repo.FindUserTokens(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return row, nil
}

// DeleteUser removes the user row. Idempotent.
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	return s.Repo.DeleteUser(ctx, id)
}
