// Package whois provides WHOIS lookup functionality for probe targets
package whois

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/commjoen/siteprobe/internal/target"
	"github.com/commjoen/siteprobe/pkg/models"
)

const (
	defaultTimeout = 30 * time.Second
)

// queryFunc fetches the raw WHOIS text for a domain
type queryFunc func(domain string) (string, error)

// Client provides WHOIS lookup functionality
type Client struct {
	timeout time.Duration
	query   queryFunc
	now     func() time.Time
}

// NewClient creates a new WHOIS client with the specified timeout
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	wc := whois.NewClient().SetTimeout(timeout)
	return &Client{
		timeout: timeout,
		query: func(domain string) (string, error) {
			return wc.Whois(domain)
		},
		now: time.Now,
	}
}

// Lookup performs a WHOIS lookup for the registrable domain of host
func (c *Client) Lookup(ctx context.Context, host string) *models.DomainInfo {
	if target.IsIP(strings.Trim(host, "[]")) {
		return &models.DomainInfo{Name: host, Error: "WHOIS not available for IP addresses"}
	}

	// Normalize domain to base domain
	domain := extractBaseDomain(host)
	if domain == "" {
		return &models.DomainInfo{Name: host, Error: "invalid domain"}
	}

	return c.performLookup(ctx, domain)
}

// performLookup executes the actual WHOIS query
func (c *Client) performLookup(ctx context.Context, domain string) *models.DomainInfo {
	result := &models.DomainInfo{Name: domain}

	type answer struct {
		raw string
		err error
	}
	done := make(chan answer, 1)

	go func() {
		raw, err := c.query(domain)
		done <- answer{raw: raw, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var ans answer
	// Wait for result or context cancellation
	select {
	case <-ctx.Done():
		result.Error = "WHOIS lookup cancelled"
		return result
	case <-timer.C:
		result.Error = "WHOIS lookup timeout"
		return result
	case ans = <-done:
	}

	if ans.err != nil {
		result.Error = categorizeError(ans.err)
		return result
	}

	parsed, err := whoisparser.Parse(ans.raw)
	if err != nil {
		result.Error = fmt.Sprintf("parse error: %v", err)
		return result
	}

	if parsed.Domain != nil {
		result.Nameservers = parsed.Domain.NameServers
		if parsed.Domain.ExpirationDate != "" {
			if t, err := parseDate(parsed.Domain.ExpirationDate); err == nil {
				t = t.UTC()
				result.ExpirationDate = &t
				days := int(math.Floor(t.Sub(c.now()).Hours() / 24))
				result.DaysUntilExpiry = &days
			}
		}
	}

	if parsed.Registrar != nil {
		result.Registrar = parsed.Registrar.Name
	}

	return result
}

// extractBaseDomain returns the base domain from a subdomain
// e.g., "www.example.com" -> "example.com"
func extractBaseDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}

	// Remove protocol if present
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")

	// Remove path if present
	if idx := strings.Index(domain, "/"); idx != -1 {
		domain = domain[:idx]
	}

	// Remove port if present
	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}

	domain = strings.TrimSuffix(domain, ".")
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}

	// Handle special TLDs like .co.uk, .com.au, etc.
	specialTLDs := map[string]bool{
		"co.uk": true, "org.uk": true, "me.uk": true, "ltd.uk": true,
		"com.au": true, "net.au": true, "org.au": true,
		"co.nz": true, "net.nz": true, "org.nz": true,
		"co.jp": true, "ne.jp": true, "or.jp": true,
		"com.br": true, "net.br": true, "org.br": true,
	}

	if len(parts) >= 3 {
		lastTwo := parts[len(parts)-2] + "." + parts[len(parts)-1]
		if specialTLDs[lastTwo] {
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}

	return strings.Join(parts[len(parts)-2:], ".")
}

// parseDate attempts to parse a date string in various formats
func parseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"January 02, 2006",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// categorizeError converts WHOIS errors to user-friendly messages
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "timeout"):
		return "WHOIS server timeout"
	case strings.Contains(errStr, "connection refused"):
		return "WHOIS server connection refused"
	case strings.Contains(errStr, "no whois server"):
		return "no WHOIS server found for this TLD"
	case strings.Contains(errStr, "rate limit"):
		return "rate limited by WHOIS server"
	default:
		return errStr
	}
}
