package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Mode selects the transport.
type Mode int

const (
	// ModeDirect connects to brokers directly.
	ModeDirect Mode = iota
	// ModeSOCKS5 uses an external SOCKS5 proxy.
	ModeSOCKS5
	// ModeTor starts an embedded Tor daemon.
	ModeTor
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSOCKS5:
		return "socks5"
	case ModeTor:
		return "tor"
	default:
		return "direct"
	}
}

// Settings describes the transport to open.
type Settings struct {
	Mode              Mode
	Address           string
	Timeout           time.Duration
	TorStartupTimeout time.Duration
}

// Session owns the HTTP client for one CLI invocation.
type Session struct {
	client *http.Client
	tor    *EmbeddedTor
	mode   Mode
}

// Open builds the transport described by s. For ModeSOCKS5 the proxy is
// checked with a handshake before the session is returned.
func Open(ctx context.Context, s Settings, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch s.Mode {
	case ModeSOCKS5:
		client, err := NewSOCKS5(s.Address, s.Timeout)
		if err != nil {
			return nil, err
		}
		if status := client.CheckConnection(ctx); status != StatusOK {
			return nil, fmt.Errorf("proxy check failed for %s: %w", s.Address, status.Err())
		}
		logger.Info("SOCKS5 proxy verified", "address", s.Address)
		return &Session{client: client.HTTPClient(), mode: s.Mode}, nil

	case ModeTor:
		opts := []EmbeddedTorOption{}
		if s.TorStartupTimeout > 0 {
			opts = append(opts, WithStartupTimeout(s.TorStartupTimeout))
		}
		embedded := NewEmbeddedTor(opts...)
		if err := embedded.Start(ctx); err != nil {
			return nil, err
		}
		logger.Info("embedded Tor daemon started", "socksAddr", embedded.SocksAddr())

		client, err := embedded.SOCKS5(s.Timeout)
		if err != nil {
			_ = embedded.Stop() //nolint:errcheck // best effort
			return nil, err
		}
		if status := client.CheckConnection(ctx); status != StatusOK {
			_ = embedded.Stop() //nolint:errcheck // best effort
			return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
		}
		return &Session{client: client.HTTPClient(), tor: embedded, mode: s.Mode}, nil

	default:
		return &Session{client: DirectClient(s.Timeout), mode: ModeDirect}, nil
	}
}

// HTTPClient returns the session's client.
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

// Mode returns the transport mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Close stops the embedded daemon, if any.
func (s *Session) Close() error {
	if s.tor == nil {
		return nil
	}
	return s.tor.Stop()
}
