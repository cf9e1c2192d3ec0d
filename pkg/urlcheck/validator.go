// Package urlcheck validates URLs before any network activity happens.
//
// IsValid is the quick structural check applied to every fetch target.
// Validator applies stricter, configurable rules for callers that want to
// filter URL lists up front.
package urlcheck

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

// domainPattern follows RFC 1034/1035 label rules with practical limits:
// alphanumeric edges, hyphens inside, labels up to 63 characters.
var domainPattern = regexp.MustCompile(
	`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]$`,
)

// maxDomainLength is the RFC 1035 limit on a full domain name.
const maxDomainLength = 253

// IsValid reports whether raw is an absolute http or https URL with a
// non-empty host. No network I/O is performed.
func IsValid(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// Validator checks URL structure, scheme, host shape, and length against
// configurable rules.
type Validator struct {
	// AllowedSchemes lists accepted URL schemes. Empty allows any scheme.
	AllowedSchemes []string

	// RequireTLD rejects hosts without a top-level domain, such as
	// "http://localhost/".
	RequireTLD bool

	// RequireQuery rejects URLs without a query string.
	RequireQuery bool

	// AllowIP permits IPv4 literals as hosts.
	AllowIP bool

	// AllowIPv6 permits IPv6 literals as hosts.
	AllowIPv6 bool

	// MinLength and MaxLength bound the raw URL string length.
	MinLength int
	MaxLength int
}

// DefaultValidator returns a validator with the common rule set:
// http/https only, TLD required, IP literals allowed.
func DefaultValidator() *Validator {
	return &Validator{
		AllowedSchemes: []string{"http", "https"},
		RequireTLD:     true,
		AllowIP:        true,
		AllowIPv6:      true,
		MinLength:      3,
		MaxLength:      2083, // IE's historical URL length cap
	}
}

// Validate checks raw against the validator's rules.
// It returns nil for a valid URL and a descriptive error otherwise.
func (v *Validator) Validate(raw string) error {
	if raw == "" {
		return fmt.Errorf("url must be a non-empty string")
	}
	if len(raw) < v.MinLength {
		return fmt.Errorf("url is too short (minimum %d characters)", v.MinLength)
	}
	if v.MaxLength > 0 && len(raw) > v.MaxLength {
		return fmt.Errorf("url is too long (maximum %d characters)", v.MaxLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("url must include a scheme (e.g. \"http://\", \"https://\")")
	}
	if len(v.AllowedSchemes) > 0 && !v.schemeAllowed(parsed.Scheme) {
		return fmt.Errorf("scheme %q is not allowed (allowed: %s)",
			parsed.Scheme, strings.Join(v.AllowedSchemes, ", "))
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include a host")
	}

	host := parsed.Hostname()
	if addr, ok := parseAddr(host); ok {
		if addr.Is4() && !v.AllowIP {
			return fmt.Errorf("ip addresses are not allowed as hosts")
		}
		if addr.Is6() && !v.AllowIPv6 {
			return fmt.Errorf("ipv6 addresses are not allowed as hosts")
		}
	} else {
		if v.RequireTLD && (!strings.Contains(host, ".") || strings.HasSuffix(host, ".")) {
			return fmt.Errorf("url must have a valid top-level domain")
		}
		if !validDomain(host) {
			return fmt.Errorf("url contains an invalid domain name")
		}
	}

	if v.RequireQuery && parsed.RawQuery == "" {
		return fmt.Errorf("url must include a query string")
	}

	return nil
}

func (v *Validator) schemeAllowed(scheme string) bool {
	for _, allowed := range v.AllowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func parseAddr(host string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

func validDomain(domain string) bool {
	if domain == "" || len(domain) > maxDomainLength {
		return false
	}
	return domainPattern.MatchString(domain)
}
