// Package reachability provides the HTTP fetch, TLS and auxiliary resource checks of a probe
package reachability

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/commjoen/siteprobe/pkg/models"
)

const (
	defaultTimeout      = 10 * time.Second
	maxRedirects        = 10
	defaultMaxBodyBytes = 5 << 20

	// DefaultUserAgent identifies the probe to target servers
	DefaultUserAgent = "WebMetrics/1.0 (Website Monitoring Bot)"

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
)

// TimingMode selects how the DNS, TCP and TLS phases are derived
type TimingMode string

const (
	// TimingEstimated derives the connection phases as fixed shares of the total
	TimingEstimated TimingMode = "estimated"
	// TimingTraced uses the phases observed through httptrace
	TimingTraced TimingMode = "traced"
)

// Checker performs the network side of a probe
type Checker struct {
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
	timingMode   TimingMode
}

// Option configures a Checker
type Option func(*Checker)

// WithUserAgent overrides the User-Agent sent with every request
func WithUserAgent(ua string) Option {
	return func(c *Checker) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of the response body is read
func WithMaxBodyBytes(n int64) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithTimingMode selects estimated or traced phase timings
func WithTimingMode(mode TimingMode) Option {
	return func(c *Checker) {
		if mode != "" {
			c.timingMode = mode
		}
	}
}

// WithTransport replaces the HTTP transport, mainly for tests against TLS servers
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Checker) {
		if rt != nil {
			c.httpClient.Transport = rt
		}
	}
}

// NewChecker creates a new reachability checker with the specified timeout
func NewChecker(timeout time.Duration, opts ...Option) *Checker {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	client := &http.Client{
		Timeout:       timeout,
		CheckRedirect: limitRedirects,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	c := &Checker{
		httpClient:   client,
		timeout:      timeout,
		userAgent:    DefaultUserAgent,
		maxBodyBytes: defaultMaxBodyBytes,
		timingMode:   TimingEstimated,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchResult is the raw outcome of a timed GET
type FetchResult struct {
	StatusCode    int
	Body          string
	Header        http.Header
	FinalURL      string
	RedirectCount int
	ContentType   string
	BytesRead     int64
	Timing        models.TimingMetrics
}

// OK reports whether the final response carried a 2xx status
func (r *FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// FetchError is returned when the fetch could not produce a response
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return e.Reason
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetch issues a single GET for urlStr and measures its phases.
// It is never retried.
func (c *Checker) Fetch(ctx context.Context, urlStr string) (*FetchResult, error) {
	rec := &phaseRecorder{}
	ctx = httptrace.WithClientTrace(ctx, rec.trace())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &FetchError{Reason: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: categorizeError(err), Err: err}
	}
	defer resp.Body.Close()

	firstByte := rec.firstByteOr(time.Now())

	contentType := resp.Header.Get("Content-Type")
	counter := &countingReader{r: io.LimitReader(resp.Body, c.maxBodyBytes)}
	body, err := readBody(counter, contentType)
	if err != nil {
		return nil, &FetchError{Reason: categorizeError(err), Err: err}
	}
	done := time.Now()

	total := millisBetween(start, done)
	timing := models.TimingMetrics{
		TTFB:     millisBetween(start, firstByte),
		Download: millisBetween(firstByte, done),
		Total:    total,
	}
	if c.timingMode == TimingTraced {
		timing.DNSLookup, timing.TCPConnect, timing.TLSHandshake = rec.phases()
	} else {
		timing.DNSLookup, timing.TCPConnect, timing.TLSHandshake = EstimatePhases(total, strings.HasPrefix(urlStr, "https"))
	}

	return &FetchResult{
		StatusCode:    resp.StatusCode,
		Body:          body,
		Header:        resp.Header,
		FinalURL:      resp.Request.URL.String(),
		RedirectCount: redirectCount(resp),
		ContentType:   contentType,
		BytesRead:     counter.n,
		Timing:        timing,
	}, nil
}

// limitRedirects follows at most maxRedirects redirects
func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// redirectCount walks back from the final response through the redirect
// responses that led to it
func redirectCount(resp *http.Response) int {
	n := 0
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		n++
	}
	return n
}

// EstimatePhases splits total into the DNS, TCP and TLS shares used when the
// transport does not report them: 5%, 10% and 15% (TLS only for HTTPS)
func EstimatePhases(total int64, https bool) (dns, tcp, tlsHandshake int64) {
	dns = roundMillis(float64(total) * 0.05)
	tcp = roundMillis(float64(total) * 0.10)
	if https {
		tlsHandshake = roundMillis(float64(total) * 0.15)
	}
	return dns, tcp, tlsHandshake
}

// readBody decodes the body to UTF-8 using the declared or sniffed charset
func readBody(r io.Reader, contentType string) (string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		// Unknown charset, keep the raw bytes
		decoded = r
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// phaseRecorder collects httptrace events. Callbacks may fire from
// transport goroutines, so every field is guarded by mu.
type phaseRecorder struct {
	mu           sync.Mutex
	dnsStart     time.Time
	connectStart time.Time
	tlsStart     time.Time
	firstByte    time.Time
	dns          time.Duration
	connect      time.Duration
	tlsHandshake time.Duration
}

func (p *phaseRecorder) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			p.mu.Lock()
			p.dnsStart = time.Now()
			p.mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			p.mu.Lock()
			if !p.dnsStart.IsZero() {
				p.dns += time.Since(p.dnsStart)
			}
			p.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			p.mu.Lock()
			if p.connectStart.IsZero() {
				p.connectStart = time.Now()
			}
			p.mu.Unlock()
		},
		ConnectDone: func(_, _ string, err error) {
			p.mu.Lock()
			if err == nil && !p.connectStart.IsZero() {
				p.connect += time.Since(p.connectStart)
				p.connectStart = time.Time{}
			}
			p.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			p.mu.Lock()
			p.tlsStart = time.Now()
			p.mu.Unlock()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			p.mu.Lock()
			if !p.tlsStart.IsZero() {
				p.tlsHandshake += time.Since(p.tlsStart)
			}
			p.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			p.mu.Lock()
			p.firstByte = time.Now()
			p.mu.Unlock()
		},
	}
}

// firstByteOr returns the last observed first-byte time, or fallback
func (p *phaseRecorder) firstByteOr(fallback time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstByte.IsZero() {
		return fallback
	}
	return p.firstByte
}

func (p *phaseRecorder) phases() (dns, connect, tlsHandshake int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return durationMillis(p.dns), durationMillis(p.connect), durationMillis(p.tlsHandshake)
}

func millisBetween(from, to time.Time) int64 {
	return durationMillis(to.Sub(from))
}

func durationMillis(d time.Duration) int64 {
	return roundMillis(float64(d) / float64(time.Millisecond))
}

func roundMillis(v float64) int64 {
	return int64(math.Round(v))
}

// categorizeError converts various network errors into user-friendly messages
func categorizeError(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "connection refused"):
		return "connection refused"
	case strings.Contains(errStr, "no such host"):
		return "DNS resolution failed"
	case strings.Contains(errStr, "i/o timeout"):
		return "connection timeout"
	case strings.Contains(errStr, "context deadline exceeded"), strings.Contains(errStr, "Client.Timeout exceeded"):
		return "request timeout"
	case strings.Contains(errStr, "x509"):
		return fmt.Sprintf("certificate error: %s", errStr)
	case strings.Contains(errStr, "certificate"):
		return fmt.Sprintf("TLS error: %s", errStr)
	default:
		return errStr
	}
}
