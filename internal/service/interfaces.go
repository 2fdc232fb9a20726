package service

import (
	"context"

	"github.com/xxxsen/estate/internal/model"
	"github.com/xxxsen/estate/internal/repo"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error
}

type VerificationCodeStore interface {
	Create(ctx context.Context, code *model.EmailVerificationCode) error
	LatestByEmail(ctx context.Context, email, purpose string) (*model.EmailVerificationCode, error)
	MarkUsed(ctx context.Context, id string) error
	ReserveAttempt(ctx context.Context, id string, maxAttempts int) error
	DeleteExpiredBefore(ctx context.Context, cutoff int64) (int64, error)
}

type PropertyStore interface {
	Create(ctx context.Context, p *model.Property) error
	Update(ctx context.Context, p *model.Property) error
	UpdateStatus(ctx context.Context, id, status string, mtime int64) error
	GetByID(ctx context.Context, id string) (*model.Property, error)
	List(ctx context.Context, filter repo.PropertyFilter) ([]*model.Property, error)
	Count(ctx context.Context, filter repo.PropertyFilter) (int64, error)
	ListNearest(ctx context.Context, box repo.BoundingBox, lat, lng float64, limit uint) ([]*model.Property, error)
	ListUngeocoded(ctx context.Context, limit uint) ([]*model.Property, error)
	SetCoordinates(ctx context.Context, id string, lat, lng float64, mtime int64) error
}

type PropertyImageStore interface {
	Create(ctx context.Context, img *model.PropertyImage) error
	ListByProperties(ctx context.Context, propertyIDs []string) (map[string][]*model.PropertyImage, error)
	CountByProperty(ctx context.Context, propertyID string) (int, error)
}

var (
	_ UserStore             = (*repo.UserRepo)(nil)
	_ VerificationCodeStore = (*repo.EmailVerificationRepo)(nil)
	_ PropertyStore         = (*repo.PropertyRepo)(nil)
	_ PropertyImageStore    = (*repo.PropertyImageRepo)(nil)
)
