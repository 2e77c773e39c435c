package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/apns-push/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	ListRecent(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if model == nil {
		return fmt.Errorf("%w: attempt is nil", domain.ErrValidation)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	created, err := attemptModelToDomain(model)
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

func (r *GormAttemptRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	var model DeliveryAttemptModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: delivery attempt %s", domain.ErrNotFound, id)
		}
		return nil, err
	}

	return attemptModelToDomain(&model)
}

// ListRecent returns the newest attempts first.
func (r *GormAttemptRepo) ListRecent(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(ClampLimit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempt, err := attemptModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *attempt)
	}

	return attempts, nil
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
