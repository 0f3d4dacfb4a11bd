package prisma

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HTTPConfig holds HTTP client options.
type HTTPConfig struct {
	// Timeout bounds every call, including reading the body (default: 30s)
	Timeout time.Duration

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for the TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration

	// InsecureSkipVerify disables certificate checks. Only for lab setups.
	InsecureSkipVerify bool
}

// NewHTTPClient builds the client used for API calls. Requests are logged and
// counted in stats, which may be nil.
func NewHTTPClient(cfg HTTPConfig, logger zerolog.Logger, stats *Stats) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: NewLoggingTransport(transport, logger, stats),
	}
}

// Stats counts API traffic for the end of run summary.
type Stats struct {
	Requests uint64
	Failed   uint64
	Bytes    uint64
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Requests: atomic.LoadUint64(&s.Requests),
		Failed:   atomic.LoadUint64(&s.Failed),
		Bytes:    atomic.LoadUint64(&s.Bytes),
	}
}

// loggingTransport logs every request and updates the stats counters.
type loggingTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
	stats  *Stats
}

// NewLoggingTransport wraps next. A nil next uses http.DefaultTransport.
func NewLoggingTransport(next http.RoundTripper, logger zerolog.Logger, stats *Stats) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &loggingTransport{next: next, logger: logger, stats: stats}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	atomic.AddUint64(&t.stats.Requests, 1)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&t.stats.Failed, 1)
		t.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", duration).
			Msg("API request failed")
		return nil, err
	}

	if resp.StatusCode >= 400 {
		atomic.AddUint64(&t.stats.Failed, 1)
	}
	if resp.ContentLength > 0 {
		atomic.AddUint64(&t.stats.Bytes, uint64(resp.ContentLength))
	}
	t.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int64("bytes", resp.ContentLength).
		Msg("API request")
	return resp, nil
}
