package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig describes the files used to secure the broker connection.
type TLSConfig struct {
	// CAFile is a PEM bundle of CAs trusted to sign the broker certificate.
	// When empty, the system pool is used.
	CAFile string

	// CertFile and KeyFile hold the client certificate for mutual TLS.
	// Both or neither must be set.
	CertFile string
	KeyFile  string

	// ServerName overrides the name checked against the broker certificate.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing against a throwaway broker.
	InsecureSkipVerify bool
}

// Enabled reports whether any TLS setting was provided.
func (c TLSConfig) Enabled() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != "" || c.InsecureSkipVerify
}

// NewClientTLSConfig loads the certificates referenced by cfg.
func NewClientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, fmt.Errorf("%w: client certificate and key must be set together", ErrInvalidConfig)
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificate found in %s", ErrInvalidConfig, cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
