package storage

import (
	"context"
	"errors"
	"time"

	"photoseleven/internal/models"
)

var (
	// ErrUserExists indicates a registration attempt for a username that is
	// already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotExist indicates the named user has no credential record.
	ErrUserNotExist = errors.New("user does not exist")
	// ErrWrongPassword indicates the supplied password does not match the
	// stored hash.
	ErrWrongPassword = errors.New("wrong password")
	// ErrSamePassword indicates a password change to the value already in use.
	ErrSamePassword = errors.New("new password matches current password")
)

// Repository exposes the datastore operations required by the API handlers:
// credential records plus the per-owner feed ledger.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, password string) (models.User, error)
	GetUser(ctx context.Context, username string) (models.User, bool, error)
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	DeleteUser(ctx context.Context, username, password string) error

	AppendFeedEntry(ctx context.Context, entry models.FeedEntry) error
	ListFeedUpdates(ctx context.Context, owner string, since time.Time, excludeToken string, limit int) ([]models.FeedEntry, error)
}

var _ Repository = (*FileRepository)(nil)
