package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Conn is an established gateway connection.
type Conn interface {
	io.Writer
	Close() error
	SetWriteDeadline(t time.Time) error
	// AuthorizationError reports why the peer chain was not trusted. A nil
	// result means the connection is authorized.
	AuthorizationError() error
}

// Dialer opens a mutually authenticated connection to addr.
type Dialer interface {
	Dial(ctx context.Context, addr string, cert tls.Certificate) (Conn, error)
}

// TLSDialer completes the TLS handshake before judging the server chain, so an
// untrusted gateway yields an open but unauthorized connection.
type TLSDialer struct {
	// RootCAs verifies the gateway chain. Nil means the system roots.
	RootCAs   *x509.CertPool
	NetDialer *net.Dialer
}

func (d *TLSDialer) Dial(ctx context.Context, addr string, cert tls.Certificate) (Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway address %q: %w", addr, err)
	}

	dialer := &tls.Dialer{
		NetDialer: d.NetDialer,
		Config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			ServerName:   host,
			MinVersion:   tls.VersionTLS12,
			// The chain is verified in verifyPeer once the handshake is done.
			InsecureSkipVerify: true, //nolint:gosec
		},
	}

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn, ok := raw.(*tls.Conn)
	if !ok {
		_ = raw.Close()
		return nil, errors.New("dialer returned a non-TLS connection")
	}

	return &tlsConn{
		Conn:    conn,
		authErr: verifyPeer(conn.ConnectionState(), host, d.RootCAs),
	}, nil
}

type tlsConn struct {
	*tls.Conn
	authErr error
}

func (c *tlsConn) AuthorizationError() error {
	return c.authErr
}

func verifyPeer(state tls.ConnectionState, host string, roots *x509.CertPool) error {
	if len(state.PeerCertificates) == 0 {
		return errors.New("gateway presented no certificate")
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		DNSName:       host,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range state.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}

	_, err := state.PeerCertificates[0].Verify(opts)
	return err
}

// LoadRootCAs reads a PEM bundle used in place of the system roots. An empty
// path returns a nil pool.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gateway CA bundle: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("gateway CA bundle %s has no certificates", path)
	}
	return pool, nil
}
