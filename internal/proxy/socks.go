package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// handshakeTimeout bounds the SOCKS5 greeting performed by CheckConnection.
const handshakeTimeout = 3 * time.Second

const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// SOCKS5 routes connections through a SOCKS5 proxy.
type SOCKS5 struct {
	address string
	dialer  xproxy.Dialer
	timeout time.Duration
}

// NewSOCKS5 creates a client for the proxy at address ("host:port").
// The proxy is not contacted until a connection is made; use
// CheckConnection to verify it up front.
func NewSOCKS5(address string, timeout time.Duration) (*SOCKS5, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	dialer, err := xproxy.SOCKS5("tcp", address, nil, xproxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &SOCKS5{
		address: address,
		dialer:  dialer,
		timeout: timeout,
	}, nil
}

// ValidateAddress checks that address is host:port with a port in 1-65535.
func ValidateAddress(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}
	return nil
}

// Address returns the proxy address.
func (s *SOCKS5) Address() string {
	return s.address
}

// CheckConnection performs a SOCKS5 greeting offering no authentication
// and reports whether the proxy accepted it.
func (s *SOCKS5) CheckConnection(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close() //nolint:errcheck

	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return StatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return StatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return StatusTimeout
		}
		return StatusWrongType
	}
	if reply[0] != socks5Version || reply[1] == socks5AuthNoAccept || reply[1] != socks5AuthNone {
		return StatusWrongType
	}
	return StatusOK
}

// HTTPClient returns an http.Client whose connections go through the proxy.
func (s *SOCKS5) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         s.dialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	return newHTTPClient(transport, s.timeout)
}

func (s *SOCKS5) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := s.dialer.(xproxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := s.dialer.Dial(network, addr)
		ch <- dialResult{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DirectClient returns an http.Client without a proxy.
func DirectClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return newHTTPClient(transport, timeout)
}

// newHTTPClient wires a cookie jar and a redirect cap onto transport.
// Brokers set session cookies on the first page and expect them on the
// follow-up search request.
func newHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
