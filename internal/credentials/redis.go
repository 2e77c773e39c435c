package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/apns-push/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "apns:credentials"

// Hash fields read by RedisStore.
const (
	FieldCertificate = "cert"
	FieldPrivateKey  = "key"
	FieldEnvironment = "environment"
)

// RedisStore reads credentials from a Redis hash on every Load, so rotated
// secrets take effect without a restart.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore(client redis.Cmdable, key string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	values, err := s.client.HMGet(ctx, s.key, FieldCertificate, FieldPrivateKey, FieldEnvironment).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials from %s: %w", s.key, err)
	}

	return Credentials{
		Certificate: stringValue(values, 0),
		PrivateKey:  stringValue(values, 1),
		Environment: stringValue(values, 2),
	}, nil
}

// Save writes creds to the hash.
func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	err := s.client.HSet(ctx, s.key,
		FieldCertificate, creds.Certificate,
		FieldPrivateKey, creds.PrivateKey,
		FieldEnvironment, creds.Environment,
	).Err()
	if err != nil {
		return fmt.Errorf("save credentials to %s: %w", s.key, err)
	}
	return nil
}

// Seed resolves src the way the static store does and writes the result to
// the hash. The cmd/seed-credentials command uses it to publish or rotate
// secrets.
func (s *RedisStore) Seed(ctx context.Context, src Source) (Credentials, error) {
	static, err := LoadStatic(src)
	if err != nil {
		return Credentials{}, err
	}

	creds, err := static.Load(ctx)
	if err != nil {
		return Credentials{}, err
	}
	if !creds.IsComplete() {
		return Credentials{}, fmt.Errorf("%w: certificate and key are required to seed %s", domain.ErrMissingCredentials, s.key)
	}

	if err := s.Save(ctx, creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func stringValue(values []any, i int) string {
	if i >= len(values) {
		return ""
	}
	s, _ := values[i].(string)
	return s
}
