// Package target normalizes user supplied URLs into probe targets
package target

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrEmptyURL is returned when no URL was supplied
	ErrEmptyURL = errors.New("URL is required")

	// ErrInvalidURL is returned when the URL cannot be parsed into a probe target
	ErrInvalidURL = errors.New("invalid URL")
)

const maxHostLength = 253

// labelRegex validates a single hostname label. Underscores are accepted
// because resolvers and browsers accept them in practice.
var labelRegex = regexp.MustCompile(`^[a-zA-Z0-9_]([a-zA-Z0-9_-]{0,61}[a-zA-Z0-9_])?$`)

// hostProfile maps internationalized names to their ASCII form the way
// browsers do for lookups, without the STD3 ban on underscores
var hostProfile = idna.New(idna.MapForLookup(), idna.BidiRule(), idna.StrictDomainName(false))

// Target is a normalized absolute URL ready to be probed
type Target struct {
	// URL is the normalized URL string used for every request
	URL string
	// Origin is scheme://host[:port] without a trailing slash
	Origin string
	// Host is the hostname without port, in its ASCII (punycode) form
	Host  string
	HTTPS bool
}

// Normalize prefixes https:// when the input carries no http(s) scheme and
// validates the resulting URL
func Normalize(raw string) (*Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}

	normalized := raw
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	host, err := ASCIIHost(parsed.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	return &Target{
		URL:    normalized,
		Origin: parsed.Scheme + "://" + parsed.Host,
		Host:   host,
		HTTPS:  parsed.Scheme == "https",
	}, nil
}

// ASCIIHost checks that host is an IP literal or a well formed hostname and
// returns it with internationalized labels converted to punycode. IP literals
// are returned unchanged.
func ASCIIHost(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("host cannot be empty")
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host format: %s", host)
	}
	if len(ascii) > maxHostLength {
		return "", fmt.Errorf("host name too long (max %d characters)", maxHostLength)
	}

	for _, label := range strings.Split(strings.TrimSuffix(ascii, "."), ".") {
		if !labelRegex.MatchString(label) {
			return "", fmt.Errorf("invalid host format: %s", host)
		}
	}
	return ascii, nil
}

// IsIP reports whether host is an IP literal
func IsIP(host string) bool {
	return net.ParseIP(host) != nil
}
