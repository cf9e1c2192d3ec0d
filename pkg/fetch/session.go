package fetch

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// maxRedirects bounds how many redirects an attempt may follow before
// failing with KindTooManyRedirects.
const maxRedirects = 10

// errTooManyRedirects marks a redirect chain past maxRedirects. The HTTP
// client wraps it in a *url.Error; classification unwraps with errors.Is.
var errTooManyRedirects = errors.New("stopped after too many redirects")

// Session is a pooled connection context. One Session amortizes connection
// setup (TCP, TLS) across all fetches issued through it; a whole batch
// shares one.
//
// Proxy and TLS settings are fixed at construction. Per-call settings such
// as timeout and redirect policy come from each fetch's Config.
type Session struct {
	transport *http.Transport
}

// NewSession builds a Session from the config's proxy and TLS settings.
// It returns an error for a malformed proxy URL.
func NewSession(cfg Config) (*Session, error) {
	// Reuse a single transport across requests to benefit from connection pooling.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Session{transport: transport}, nil
}

// Close releases the session's idle pooled connections. In-flight requests
// are unaffected.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

// client builds an http.Client for one fetch call on top of the shared
// transport. Client construction is cheap; the pooled state lives in the
// transport.
func (s *Session) client(cfg Config) *http.Client {
	c := &http.Client{
		Transport: s.transport,
		Timeout:   cfg.Timeout,
	}

	if cfg.FollowRedirects {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return c
}
