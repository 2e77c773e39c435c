package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kursadbilgin/apns-push/internal/domain"
	"github.com/kursadbilgin/apns-push/internal/observability"
	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// GatewayClient delivers one frame per call over a fresh TLS connection:
// connect, authorize, write, close.
type GatewayClient struct {
	dialer         Dialer
	connectTimeout time.Duration
	writeTimeout   time.Duration
	logger         *zap.Logger
}

func NewGatewayClient(dialer Dialer, connectTimeout, writeTimeout time.Duration, logger *zap.Logger) (*GatewayClient, error) {
	if dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GatewayClient{
		dialer:         dialer,
		connectTimeout: connectTimeout,
		writeTimeout:   writeTimeout,
		logger:         logger,
	}, nil
}

func (c *GatewayClient) Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResponse, error) {
	if c == nil || c.dialer == nil {
		return nil, fmt.Errorf("gateway client is not initialized")
	}

	if strings.TrimSpace(req.Certificate) == "" || strings.TrimSpace(req.PrivateKey) == "" {
		return nil, &ProviderError{
			Kind:    domain.ErrMissingCredentials,
			Message: "certificate and key are required",
		}
	}

	cert, err := tls.X509KeyPair([]byte(req.Certificate), []byte(req.PrivateKey))
	if err != nil {
		return nil, &ProviderError{
			Kind:  domain.ErrInvalidCredentials,
			Cause: err,
		}
	}

	addr := req.Gateway.Address()
	logger := observability.WithContextLogger(c.logger, ctx).With(zap.String("gateway", addr))

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, addr, cert)
	if err != nil {
		logger.Warn("gateway connection failed", zap.Error(err))
		return nil, &ProviderError{
			Kind:      domain.ErrConnection,
			Message:   fmt.Sprintf("dial %s", addr),
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Debug("gateway connection close failed", zap.Error(closeErr))
		}
	}()

	if authErr := conn.AuthorizationError(); authErr != nil {
		logger.Warn("did not successfully connect", zap.Error(authErr))
		return nil, &ProviderError{
			Kind:    domain.ErrTLSAuthorization,
			Message: fmt.Sprintf("gateway %s is not trusted", addr),
			Cause:   authErr,
		}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return nil, &ProviderError{
			Kind:      domain.ErrConnection,
			Message:   "set write deadline",
			Transient: true,
			Cause:     err,
		}
	}

	written, err := conn.Write(req.Frame)
	if err == nil && written < len(req.Frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		logger.Warn("frame write failed", zap.Int("written", written), zap.Error(err))
		return nil, &ProviderError{
			Kind:      domain.ErrConnection,
			Message:   fmt.Sprintf("wrote %d of %d bytes", written, len(req.Frame)),
			Transient: true,
			Cause:     err,
		}
	}

	logger.Debug("frame delivered", zap.Int("bytes", written))

	return &DeliveryResponse{
		BytesWritten: written,
		Gateway:      req.Gateway,
	}, nil
}
