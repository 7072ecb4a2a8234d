package user

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("User not found")

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, limit int) ([]User, error)
	Clear(ctx context.Context) error
}
