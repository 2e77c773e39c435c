package provider

import (
	"context"
)

// Provider is the outbound push delivery port.
type Provider interface {
	Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryResponse, error)
}

// DeliveryRequest carries one serialized frame and the PEM credentials used to
// authenticate against the gateway.
type DeliveryRequest struct {
	Frame       []byte
	Gateway     Gateway
	Certificate string
	PrivateKey  string
}

// DeliveryResponse stores transaction metadata for audit and metrics.
type DeliveryResponse struct {
	BytesWritten int
	Gateway      Gateway
}
