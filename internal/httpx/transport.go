package httpx

import (
	"net"
	"net/http"
	"time"
)

// PoolConfig configures the shared, process-wide connection pool.
type PoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	EnablePooling       bool
}

// DefaultPoolConfig mirrors the 256/256/30s defaults: a generous pool sized
// for high fan-out against a small number of target hosts.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		IdleConnTimeout:     30 * time.Second,
		EnablePooling:       true,
	}
}

// NewTransport builds the shared *http.Transport. When EnablePooling is
// false, idle connections are disabled entirely so every request opens a
// fresh socket.
func NewTransport(cfg PoolConfig) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.EnablePooling {
		t.DisableKeepAlives = true
		t.MaxIdleConns = 0
		t.MaxIdleConnsPerHost = 0
	}
	return t
}

// Teardown releases all idle connections held by transport, for explicit
// shutdown between runs that don't share a process-wide pool.
func Teardown(transport *http.Transport) {
	transport.CloseIdleConnections()
}
