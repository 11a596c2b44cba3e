// Package transport builds the HTTP client the agent uses to reach the
// Prometheus backend, with authentication and TLS applied per config.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/obsidianstack/promedge/agent/internal/config"
)

// New constructs an http.Client for the backend's auth, TLS and timeout
// settings. Secrets are resolved from the environment on every request, so
// rotated tokens are picked up without a restart.
func New(p config.Prometheus) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: p.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if p.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(p.Auth.CertFile, p.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("transport: load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if p.Auth.CAFile != "" {
		caPEM, err := os.ReadFile(p.Auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("transport: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("transport: no valid certs found in ca file %q", p.Auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg

	return &http.Client{
		Transport: &authRoundTripper{base: base, auth: p.Auth},
		Timeout:   p.Timeout,
	}, nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}
