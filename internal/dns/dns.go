// Package dns inspects the DNS records of a probe target
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/commjoen/siteprobe/pkg/models"
)

const defaultTimeout = 5 * time.Second

// errNameNotFound is returned when the server answers NXDOMAIN
var errNameNotFound = errors.New("NXDOMAIN")

// Client provides DNS query functionality
type Client struct {
	dnsServers []string
	timeout    time.Duration
}

// NewClient creates a new DNS client with the specified timeout. When no
// servers are given the system resolvers are used.
func NewClient(timeout time.Duration, servers ...string) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if len(servers) == 0 {
		servers = getSystemDNSServers()
	}
	return &Client{
		timeout:    timeout,
		dnsServers: servers,
	}
}

// getSystemDNSServers returns the system's DNS servers or defaults
func getSystemDNSServers() []string {
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		// Fall back to well-known public DNS servers
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, server := range config.Servers {
		servers = append(servers, net.JoinHostPort(server, config.Port))
	}
	return servers
}

// Inspect resolves the A, AAAA and CNAME records of host concurrently and
// measures how long the lookup took. Failures are reported in the Error field.
func (c *Client) Inspect(ctx context.Context, host string) *models.DNSInfo {
	if ip := net.ParseIP(host); ip != nil {
		info := &models.DNSInfo{}
		if ip.To4() != nil {
			info.A = []string{ip.String()}
		} else {
			info.AAAA = []string{ip.String()}
		}
		return info
	}

	info := &models.DNSInfo{}
	start := time.Now()

	var (
		wg                   sync.WaitGroup
		aErr, aaaaErr, cnErr error
		server               string
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		info.A, server, aErr = c.QueryA(ctx, host)
	}()
	go func() {
		defer wg.Done()
		info.AAAA, _, aaaaErr = c.QueryAAAA(ctx, host)
	}()
	go func() {
		defer wg.Done()
		info.CNAME, _, cnErr = c.QueryCNAME(ctx, host)
	}()
	wg.Wait()

	info.LookupMs = time.Since(start).Milliseconds()
	info.Server = server

	// Only record errors that aren't NXDOMAIN for partial results
	var errs []string
	for _, qe := range []struct {
		name string
		err  error
	}{{"A", aErr}, {"AAAA", aaaaErr}, {"CNAME", cnErr}} {
		if qe.err != nil && !isNotFoundError(qe.err) {
			errs = append(errs, fmt.Sprintf("%s: %s", qe.name, categorizeError(qe.err)))
		}
	}
	if len(errs) > 0 {
		info.Error = strings.Join(errs, "; ")
	} else if len(info.A) == 0 && len(info.AAAA) == 0 && isNotFoundError(aErr) {
		info.Error = categorizeError(aErr)
	}

	return info
}

// QueryA returns A records (IPv4 addresses) for a hostname and the server that answered
func (c *Client) QueryA(ctx context.Context, hostname string) ([]string, string, error) {
	resp, server, err := c.query(ctx, hostname, dns.TypeA)
	if err != nil {
		return nil, server, err
	}

	var ips []string
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}

	sort.Strings(ips)
	return ips, server, nil
}

// QueryAAAA returns AAAA records (IPv6 addresses) for a hostname
func (c *Client) QueryAAAA(ctx context.Context, hostname string) ([]string, string, error) {
	resp, server, err := c.query(ctx, hostname, dns.TypeAAAA)
	if err != nil {
		return nil, server, err
	}

	var ips []string
	for _, ans := range resp.Answer {
		if aaaa, ok := ans.(*dns.AAAA); ok {
			ips = append(ips, aaaa.AAAA.String())
		}
	}

	sort.Strings(ips)
	return ips, server, nil
}

// QueryCNAME returns the CNAME target for a hostname, empty when there is none
func (c *Client) QueryCNAME(ctx context.Context, hostname string) (string, string, error) {
	resp, server, err := c.query(ctx, hostname, dns.TypeCNAME)
	if err != nil {
		return "", server, err
	}

	for _, ans := range resp.Answer {
		if cname, ok := ans.(*dns.CNAME); ok {
			return strings.TrimSuffix(cname.Target, "."), server, nil
		}
	}

	return "", server, nil
}

// query sends one question to each configured server in turn until one
// answers. There is no retry round.
func (c *Client) query(ctx context.Context, hostname string, qtype uint16) (*dns.Msg, string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), qtype)

	client := &dns.Client{
		Timeout: c.timeout,
		Net:     "udp",
	}

	var lastErr error
	for _, server := range c.dnsServers {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		default:
		}

		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, server, nil
		case dns.RcodeNameError:
			return nil, server, errNameNotFound
		default:
			// Check for DNS errors
			lastErr = fmt.Errorf("DNS error: %s", dns.RcodeToString[resp.Rcode])
		}
	}

	if lastErr != nil {
		return nil, "", fmt.Errorf("DNS query failed: %w", lastErr)
	}
	return nil, "", fmt.Errorf("DNS query failed: no servers configured")
}

// isNotFoundError checks if the error indicates no records were found
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errNameNotFound) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NXDOMAIN") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "Name Error")
}

// categorizeError converts DNS errors to user-friendly messages
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Check for common error patterns
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "DNS query timeout"
	}

	switch {
	case strings.Contains(errStr, "NXDOMAIN"):
		return "domain not found (NXDOMAIN)"
	case strings.Contains(errStr, "SERVFAIL"):
		return "server failure (SERVFAIL)"
	case strings.Contains(errStr, "REFUSED"):
		return "query refused"
	case strings.Contains(errStr, "no such host"):
		return "host not found"
	case strings.Contains(errStr, "i/o timeout"):
		return "DNS query timeout"
	case strings.Contains(errStr, "connection refused"):
		return "DNS server connection refused"
	default:
		return errStr
	}
}
