package repository

import (
	"fmt"
	"time"

	"github.com/kursadbilgin/apns-push/internal/domain"
)

// DeliveryAttemptModel is the persistence model for the delivery_attempts table.
type DeliveryAttemptModel struct {
	ID            string             `gorm:"type:uuid;primaryKey"`
	CorrelationID string             `gorm:"type:varchar(64);not null"`
	Environment   domain.Environment `gorm:"type:varchar(16);not null"`
	Gateway       string             `gorm:"type:varchar(255);not null"`
	TokenSuffix   string             `gorm:"type:varchar(16);not null"`
	FrameBytes    int                `gorm:"not null;default:0"`
	Identifier    *int64             `gorm:"type:bigint"`
	Outcome       domain.Outcome     `gorm:"type:varchar(32);not null"`
	Error         *string            `gorm:"type:text"`
	DurationMS    int64              `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	var identifier *int64
	if a.Identifier != nil {
		v := int64(*a.Identifier)
		identifier = &v
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		CorrelationID: a.CorrelationID,
		Environment:   a.Environment,
		Gateway:       a.Gateway,
		TokenSuffix:   a.TokenSuffix,
		FrameBytes:    a.FrameBytes,
		Identifier:    identifier,
		Outcome:       a.Outcome,
		Error:         a.Error,
		DurationMS:    a.Duration.Milliseconds(),
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) (*domain.DeliveryAttempt, error) {
	if m == nil {
		return nil, nil
	}

	outcome, err := domain.ParseOutcomeFromString(string(m.Outcome))
	if err != nil {
		return nil, fmt.Errorf("delivery attempt %s: %w", m.ID, err)
	}

	var identifier *uint32
	if m.Identifier != nil {
		v := uint32(*m.Identifier)
		identifier = &v
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		Environment:   m.Environment,
		Gateway:       m.Gateway,
		TokenSuffix:   m.TokenSuffix,
		FrameBytes:    m.FrameBytes,
		Identifier:    identifier,
		Outcome:       outcome,
		Error:         m.Error,
		Duration:      time.Duration(m.DurationMS) * time.Millisecond,
		CreatedAt:     m.CreatedAt,
	}, nil
}
