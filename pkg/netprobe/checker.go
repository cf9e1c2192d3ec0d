// Package netprobe answers one question before a batch starts: is this
// host online at all? It runs tiered reachability probes (TCP dials, DNS
// lookups, HTTP HEADs) against well-known endpoints so callers can tell
// "the network is down" apart from "every fetch target is failing".
package netprobe

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe kinds reported in a Report.
const (
	ProbeDial = "dial"
	ProbeDNS  = "dns"
	ProbeHTTP = "http"
)

// Config holds connectivity checker configuration.
type Config struct {
	// Timeout bounds each individual probe.
	Timeout time.Duration

	// RetryCount is how many times a failing probe is re-attempted.
	RetryCount int

	// RetryDelay is the pause between attempts of one probe.
	RetryDelay time.Duration

	// DialHosts are host:port targets for raw TCP dial probes.
	DialHosts []string

	// DNSHosts are names resolved in the DNS probe tier.
	DNSHosts []string

	// HTTPEndpoints are URLs sent a HEAD request in the HTTP probe tier.
	HTTPEndpoints []string
}

// DefaultConfig returns probes against public anycast resolvers and two
// high-availability origins.
func DefaultConfig() Config {
	return Config{
		Timeout:    5 * time.Second,
		RetryCount: 2,
		RetryDelay: 500 * time.Millisecond,
		DialHosts:  []string{"8.8.8.8:53", "1.1.1.1:53"},
		DNSHosts:   []string{"google.com", "cloudflare.com"},
		HTTPEndpoints: []string{
			"https://www.google.com",
			"https://www.cloudflare.com",
		},
	}
}

// Outcome is the result of one probe.
type Outcome struct {
	Kind   string
	Target string
	OK     bool
	Err    error
}

// Report collects every probe outcome from a Details run.
type Report struct {
	Outcomes []Outcome
}

// Online reports whether any probe succeeded.
func (r Report) Online() bool {
	for _, o := range r.Outcomes {
		if o.OK {
			return true
		}
	}
	return false
}

// Checker runs connectivity probes.
type Checker struct {
	config Config
}

// New creates a Checker. Zero-valued config fields fall back to defaults.
func New(config Config) *Checker {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	if len(config.DialHosts) == 0 && len(config.DNSHosts) == 0 && len(config.HTTPEndpoints) == 0 {
		config.DialHosts = def.DialHosts
		config.DNSHosts = def.DNSHosts
		config.HTTPEndpoints = def.HTTPEndpoints
	}
	return &Checker{config: config}
}

// IsConnected runs the probe tiers in order (dial, DNS, HTTP) and returns
// true as soon as one tier reports any success. Probes within a tier run
// in parallel.
func (c *Checker) IsConnected(ctx context.Context) bool {
	if c.anyProbe(ctx, ProbeDial, c.config.DialHosts) {
		return true
	}
	if c.anyProbe(ctx, ProbeDNS, c.config.DNSHosts) {
		return true
	}
	if c.anyProbe(ctx, ProbeHTTP, c.config.HTTPEndpoints) {
		return true
	}

	log.Warn().Msg("All connectivity probes failed")
	return false
}

// Details runs every configured probe across all tiers and returns the
// per-probe outcomes, for diagnostics rather than a yes/no gate.
func (c *Checker) Details(ctx context.Context) Report {
	var report Report
	report.Outcomes = append(report.Outcomes, c.runTier(ctx, ProbeDial, c.config.DialHosts)...)
	report.Outcomes = append(report.Outcomes, c.runTier(ctx, ProbeDNS, c.config.DNSHosts)...)
	report.Outcomes = append(report.Outcomes, c.runTier(ctx, ProbeHTTP, c.config.HTTPEndpoints)...)
	return report
}

// anyProbe runs one tier and reports whether any target was reachable.
func (c *Checker) anyProbe(ctx context.Context, kind string, targets []string) bool {
	for _, o := range c.runTier(ctx, kind, targets) {
		if o.OK {
			return true
		}
	}
	return false
}

// runTier probes every target of one tier in parallel.
func (c *Checker) runTier(ctx context.Context, kind string, targets []string) []Outcome {
	outcomes := make([]Outcome, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			err := c.withRetries(ctx, func(ctx context.Context) error {
				return c.probe(ctx, kind, target)
			})
			outcomes[idx] = Outcome{Kind: kind, Target: target, OK: err == nil, Err: err}

			if err != nil {
				log.Debug().
					Str("probe", kind).
					Str("target", target).
					Err(err).
					Msg("Connectivity probe failed")
			}
		}(i, target)
	}
	wg.Wait()

	return outcomes
}

// withRetries re-attempts a failing probe up to RetryCount extra times
// with a fixed delay between attempts.
func (c *Checker) withRetries(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		lastErr = fn(probeCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// probe runs a single probe of the given kind against one target.
func (c *Checker) probe(ctx context.Context, kind, target string) error {
	switch kind {
	case ProbeDial:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return err
		}
		return conn.Close()

	case ProbeDNS:
		_, err := net.DefaultResolver.LookupHost(ctx, target)
		return err

	default: // ProbeHTTP
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}
