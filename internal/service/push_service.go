package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/apns-push/internal/credentials"
	"github.com/kursadbilgin/apns-push/internal/domain"
	"github.com/kursadbilgin/apns-push/internal/observability"
	"github.com/kursadbilgin/apns-push/internal/provider"
	"github.com/kursadbilgin/apns-push/internal/repository"
	"github.com/kursadbilgin/apns-push/internal/wire"
	"go.uber.org/zap"
)

const (
	DefaultMaxPayloadBytes = 2048
	recordTimeout          = 2 * time.Second
)

// PushOptions tunes request handling.
type PushOptions struct {
	// StrictParams rejects requests whose parameters needed coercion.
	StrictParams      bool
	IncludeIdentifier bool
	// MaxPayloadBytes caps the JSON payload; 0 leaves only the frame item limit.
	MaxPayloadBytes int
}

// PushReceipt describes a frame accepted by the gateway socket.
type PushReceipt struct {
	AttemptID   string
	Environment domain.Environment
	Gateway     provider.Gateway
	FrameBytes  int
	Identifier  *uint32
}

// PushService turns request parameters into one gateway transaction.
type PushService struct {
	store    credentials.Store
	provider provider.Provider
	gateways provider.GatewayPolicy
	attempts repository.AttemptRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
	opts     PushOptions

	now           func() time.Time
	newAttemptID  func() string
	newIdentifier func() uint32
}

// NewPushService wires the push flow. attempts and metrics are optional.
func NewPushService(
	store credentials.Store,
	p provider.Provider,
	gateways provider.GatewayPolicy,
	attempts repository.AttemptRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts PushOptions,
) (*PushService, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPayloadBytes < 0 {
		return nil, fmt.Errorf("max payload bytes must not be negative")
	}

	return &PushService{
		store:         store,
		provider:      p,
		gateways:      gateways,
		attempts:      attempts,
		metrics:       metrics,
		logger:        logger,
		opts:          opts,
		now:           time.Now,
		newAttemptID:  uuid.NewString,
		newIdentifier: func() uint32 { return uuid.New().ID() },
	}, nil
}

// Push validates params, serializes the notification and delivers it. Every
// call ends in exactly one recorded attempt.
func (s *PushService) Push(ctx context.Context, params map[string]any) (*PushReceipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	creds, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}

	start := s.now()
	attempt := &domain.DeliveryAttempt{
		ID:            s.newAttemptID(),
		CorrelationID: correlationID,
		Environment:   creds.GatewayEnvironment(),
		CreatedAt:     start.UTC(),
	}

	receipt, err := s.push(ctx, creds, params, attempt)
	attempt.Duration = s.now().Sub(start)
	s.record(ctx, attempt, err)

	return receipt, err
}

func (s *PushService) push(
	ctx context.Context,
	creds credentials.Credentials,
	params map[string]any,
	attempt *domain.DeliveryAttempt,
) (*PushReceipt, error) {
	logger := observability.WithContextLogger(s.logger, ctx)

	if !creds.IsComplete() {
		return nil, fmt.Errorf("%w: certificate and key are required", domain.ErrMissingCredentials)
	}

	tokenHex, err := destinationToken(params)
	if err != nil {
		return nil, err
	}

	notification, err := domain.NewNotification(tokenHex)
	if err != nil {
		return nil, err
	}
	attempt.TokenSuffix = domain.TokenSuffix(notification.Token)

	if issues := notification.ApplyParameters(params); issues != nil {
		if s.opts.StrictParams {
			return nil, issues
		}
		s.metrics.IncParameterCoercions()
		logger.Warn("request parameters replaced by defaults", zap.Error(issues))
	}

	frameOpts := wire.FrameOptions{IncludeIdentifier: s.opts.IncludeIdentifier}
	if frameOpts.IncludeIdentifier {
		frameOpts.Identifier = s.newIdentifier()
		attempt.Identifier = &frameOpts.Identifier
	}

	if s.opts.MaxPayloadBytes > 0 {
		payload, err := notification.EncodePayload()
		if err != nil {
			return nil, err
		}
		if len(payload) > s.opts.MaxPayloadBytes {
			return nil, fmt.Errorf("%w: payload is %d bytes, limit is %d", domain.ErrEncoding, len(payload), s.opts.MaxPayloadBytes)
		}
	}

	frame, err := notification.Serialize(frameOpts)
	if err != nil {
		return nil, err
	}
	attempt.FrameBytes = len(frame)
	s.metrics.ObserveFrameBytes(len(frame))

	gateway := s.gateways.Select(creds.Environment)
	attempt.Gateway = gateway.Address()

	deliverStart := s.now()
	resp, err := s.provider.Deliver(ctx, provider.DeliveryRequest{
		Frame:       frame,
		Gateway:     gateway,
		Certificate: creds.Certificate,
		PrivateKey:  creds.PrivateKey,
	})
	s.metrics.ObserveDeliveryDuration(attempt.Environment.String(), s.now().Sub(deliverStart))
	if err != nil {
		return nil, err
	}

	logger.Info("notification delivered",
		zap.String("attemptId", attempt.ID),
		zap.String("gateway", attempt.Gateway),
		zap.Int("bytes", resp.BytesWritten),
	)

	return &PushReceipt{
		AttemptID:   attempt.ID,
		Environment: attempt.Environment,
		Gateway:     resp.Gateway,
		FrameBytes:  len(frame),
		Identifier:  attempt.Identifier,
	}, nil
}

func (s *PushService) record(ctx context.Context, attempt *domain.DeliveryAttempt, pushErr error) {
	attempt.Outcome = domain.OutcomeFor(pushErr)
	if pushErr != nil {
		msg := pushErr.Error()
		attempt.Error = &msg

		observability.WithContextLogger(s.logger, ctx).Warn("notification not delivered",
			zap.String("attemptId", attempt.ID),
			zap.String("outcome", attempt.Outcome.String()),
			zap.Bool("transient", provider.IsTransient(pushErr)),
			zap.Error(pushErr),
		)
	}

	s.metrics.IncDelivery(attempt.Environment.String(), attempt.Outcome.String())

	if s.attempts == nil {
		return
	}

	// The request context may already be canceled once the socket is closed.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.attempts.Create(recordCtx, attempt); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("failed to record delivery attempt",
			zap.String("attemptId", attempt.ID),
			zap.Error(err),
		)
	}
}

func destinationToken(params map[string]any) (string, error) {
	raw, ok := params[domain.ParamToken]
	if !ok || raw == nil {
		return "", domain.ErrMissingDestination
	}

	token, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: token must be a string, got %T", domain.ErrInvalidToken, raw)
	}
	if strings.TrimSpace(token) == "" {
		return "", domain.ErrMissingDestination
	}

	return token, nil
}

// DeliveryLog exposes the recorded delivery attempts.
type DeliveryLog struct {
	attempts repository.AttemptRepository
}

func NewDeliveryLog(attempts repository.AttemptRepository) (*DeliveryLog, error) {
	if attempts == nil {
		return nil, errors.New("attempt repository is required")
	}
	return &DeliveryLog{attempts: attempts}, nil
}

func (l *DeliveryLog) ListRecent(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	return l.attempts.ListRecent(ctx, repository.ClampLimit(limit))
}

func (l *DeliveryLog) Get(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid attempt id %q", domain.ErrValidation, id)
	}
	return l.attempts.GetByID(ctx, id)
}
