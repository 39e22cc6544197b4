package repository

import (
	"context"

	"brokerdesk/internal/domain/entity"
)

// UserRepository resolves participant profiles for display next to threads.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	Upsert(ctx context.Context, user *entity.User) error
}
