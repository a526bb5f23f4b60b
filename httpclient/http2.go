package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const defaultDialTimeout = 10 * time.Second

// HTTP2Config tunes HTTP/2. ReadIdleTimeout enables ping health checks,
// which detect dead long-lived streams that would otherwise hang.
type HTTP2Config struct {
	// Cleartext speaks h2c with prior knowledge to http:// URLs. HTTP/1.1
	// is not available on such a client.
	Cleartext bool `yaml:"cleartext" mapstructure:"cleartext"`
	// ReadIdleTimeout sends a ping after this much idle time on a
	// connection. Zero disables health checks.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout" mapstructure:"read_idle_timeout" validate:"gte=0"`
	// PingTimeout closes the connection when a ping is not answered in time.
	// Defaults to 15s.
	PingTimeout time.Duration `yaml:"ping_timeout" mapstructure:"ping_timeout" validate:"gte=0"`
}

// roundTripper builds the transport for cfg. base is used unless h2c is
// requested.
func (c *HTTP2Config) roundTripper(base *http.Transport) (http.RoundTripper, error) {
	if c == nil {
		return base, nil
	}
	if c.Cleartext {
		return &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{Timeout: defaultDialTimeout}).DialContext(ctx, network, addr)
			},
			ReadIdleTimeout: c.ReadIdleTimeout,
			PingTimeout:     c.PingTimeout,
		}, nil
	}
	t2, err := http2.ConfigureTransports(base)
	if err != nil {
		return nil, fmt.Errorf("httpclient: configure http2: %w", err)
	}
	t2.ReadIdleTimeout = c.ReadIdleTimeout
	t2.PingTimeout = c.PingTimeout
	return base, nil
}
