package repository

import (
	"context"

	"userStore/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	CreateUser(ctx context.Context, firstName, lastName string, age int) (int64, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByName(ctx context.Context, firstName string) (*models.User, error)
	FindAllUsers(ctx context.Context) ([]models.User, error)
	ListUsers(ctx context.Context, p ListUsersParams) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) (*models.User, int64, error)
	DeleteUser(ctx context.Context, id int64) (int64, error)
}

var _ UserRepositoryI = (*UserRepository)(nil)
