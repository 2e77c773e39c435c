// Package credentials loads the client certificate, private key and gateway
// environment used to authenticate against the push gateway.
package credentials

import (
	"context"
	"strings"

	"github.com/kursadbilgin/apns-push/internal/domain"
)

// Credentials is the PEM encoded client identity plus the environment that
// selects the gateway.
type Credentials struct {
	Certificate string
	PrivateKey  string
	Environment string
}

// IsComplete reports whether both the certificate and the key are present.
func (c Credentials) IsComplete() bool {
	return strings.TrimSpace(c.Certificate) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

func (c Credentials) GatewayEnvironment() domain.Environment {
	return domain.ParseEnvironment(c.Environment)
}

// Store returns the credentials to use for a push request.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
}
