package credentials

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// StaticStore serves a credential set fixed at startup.
type StaticStore struct {
	creds Credentials
}

func NewStaticStore(creds Credentials) *StaticStore {
	return &StaticStore{creds: creds}
}

func (s *StaticStore) Load(context.Context) (Credentials, error) {
	return s.creds, nil
}

// Source describes where static credentials come from. Inline PEM wins over
// files, and files win over a PKCS#12 bundle.
type Source struct {
	Environment string

	CertificatePEM string
	PrivateKeyPEM  string

	CertificateFile string
	PrivateKeyFile  string

	P12File     string
	P12Password string
}

// LoadStatic resolves src into a StaticStore. An empty source yields an empty
// store so requests fail with missing credentials instead of at startup.
func LoadStatic(src Source) (*StaticStore, error) {
	creds := Credentials{
		Certificate: src.CertificatePEM,
		PrivateKey:  src.PrivateKeyPEM,
		Environment: src.Environment,
	}

	if creds.Certificate == "" && src.CertificateFile != "" {
		data, err := os.ReadFile(src.CertificateFile)
		if err != nil {
			return nil, fmt.Errorf("read certificate file: %w", err)
		}
		creds.Certificate = string(data)
	}
	if creds.PrivateKey == "" && src.PrivateKeyFile != "" {
		data, err := os.ReadFile(src.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		creds.PrivateKey = string(data)
	}

	if !creds.IsComplete() && src.P12File != "" {
		data, err := os.ReadFile(src.P12File)
		if err != nil {
			return nil, fmt.Errorf("read p12 file: %w", err)
		}
		certPEM, keyPEM, err := DecodePKCS12(data, src.P12Password)
		if err != nil {
			return nil, err
		}
		creds.Certificate = certPEM
		creds.PrivateKey = keyPEM
	}

	return NewStaticStore(creds), nil
}

// DecodePKCS12 converts a PKCS#12 bundle holding one certificate and its key
// into PEM blocks.
func DecodePKCS12(data []byte, password string) (string, string, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return "", "", fmt.Errorf("decode p12: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("decode p12 private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return string(certPEM), string(keyPEM), nil
}
