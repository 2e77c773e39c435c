package provider

import (
	"net"
	"strconv"

	"github.com/kursadbilgin/apns-push/internal/domain"
)

const (
	DefaultProductionHost = "gateway.push.apple.com"
	DefaultSandboxHost    = "gateway.sandbox.push.apple.com"
	DefaultPort           = 2195
)

// Gateway is a push gateway endpoint.
type Gateway struct {
	Host string
	Port int
}

func (g Gateway) Address() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

func (g Gateway) String() string { return g.Address() }

// GatewayPolicy picks the endpoint for a credential environment.
type GatewayPolicy struct {
	Production Gateway
	Sandbox    Gateway
}

func DefaultGatewayPolicy() GatewayPolicy {
	return GatewayPolicy{
		Production: Gateway{Host: DefaultProductionHost, Port: DefaultPort},
		Sandbox:    Gateway{Host: DefaultSandboxHost, Port: DefaultPort},
	}
}

// Select returns the production gateway only for "production"; every other
// value, including empty, selects the sandbox.
func (p GatewayPolicy) Select(environment string) Gateway {
	if domain.ParseEnvironment(environment) == domain.EnvironmentProduction {
		return p.Production
	}
	return p.Sandbox
}
