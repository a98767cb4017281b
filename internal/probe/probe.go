// Package probe runs every check against one target and joins the results
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/commjoen/siteprobe/internal/config"
	"github.com/commjoen/siteprobe/internal/dns"
	"github.com/commjoen/siteprobe/internal/headers"
	"github.com/commjoen/siteprobe/internal/metrics"
	"github.com/commjoen/siteprobe/internal/reachability"
	"github.com/commjoen/siteprobe/internal/seo"
	"github.com/commjoen/siteprobe/internal/target"
	"github.com/commjoen/siteprobe/internal/verdict"
	"github.com/commjoen/siteprobe/internal/whois"
	"github.com/commjoen/siteprobe/pkg/models"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrMissingURL is returned when the request carries no URL
	ErrMissingURL = target.ErrEmptyURL

	// ErrInvalidURL is returned when the URL cannot be turned into a probe target
	ErrInvalidURL = target.ErrInvalidURL
)

// Prober runs the fetch, certificate, crawl file, DNS and WHOIS checks for a
// target concurrently and synthesizes the verdict
type Prober struct {
	checker     *reachability.Checker
	dns         *dns.Client
	whois       *whois.Client
	synthesizer *verdict.Synthesizer
	recorder    *metrics.Recorder
	logger      *zap.Logger
	timeout     time.Duration
}

// Option configures a Prober
type Option func(*Prober)

// WithChecker sets the HTTP checker used for fetch, certificate and crawl file checks
func WithChecker(c *reachability.Checker) Option {
	return func(p *Prober) {
		p.checker = c
	}
}

// WithDNS enables DNS inspection with the given client
func WithDNS(c *dns.Client) Option {
	return func(p *Prober) {
		p.dns = c
	}
}

// WithWHOIS enables WHOIS lookups with the given client
func WithWHOIS(c *whois.Client) Option {
	return func(p *Prober) {
		p.whois = c
	}
}

// WithSynthesizer replaces the verdict synthesizer
func WithSynthesizer(s *verdict.Synthesizer) Option {
	return func(p *Prober) {
		p.synthesizer = s
	}
}

// WithRecorder records probe metrics
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Prober) {
		p.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTimeout bounds each individual sub-check
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New creates a Prober. DNS and WHOIS inspection are off unless enabled with
// WithDNS and WithWHOIS.
func New(opts ...Option) *Prober {
	p := &Prober{
		synthesizer: verdict.New(),
		logger:      zap.NewNop(),
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.checker == nil {
		p.checker = reachability.NewChecker(p.timeout)
	}
	return p
}

// FromConfig builds a Prober from the loaded configuration
func FromConfig(cfg *config.Config, logger *zap.Logger, recorder *metrics.Recorder) *Prober {
	checker := reachability.NewChecker(cfg.Timeout,
		reachability.WithUserAgent(cfg.UserAgent),
		reachability.WithMaxBodyBytes(cfg.MaxBodyBytes),
		reachability.WithTimingMode(cfg.TimingMode),
	)

	opts := []Option{
		WithChecker(checker),
		WithTimeout(cfg.Timeout),
		WithLogger(logger),
		WithRecorder(recorder),
	}
	if cfg.DNSEnabled {
		opts = append(opts, WithDNS(dns.NewClient(cfg.Timeout)))
	}
	if cfg.WHOISEnabled {
		opts = append(opts, WithWHOIS(whois.NewClient(cfg.Timeout)))
	}
	return New(opts...)
}

// Probe normalizes raw and checks the target. Input errors wrap ErrMissingURL
// or ErrInvalidURL and no network activity happens. Failures of individual
// checks are folded into the result.
func (p *Prober) Probe(ctx context.Context, raw string) (*models.ProbeResponse, error) {
	t, err := target.Normalize(raw)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(zap.String("url", t.URL))
	logger.Debug("Starting probe", zap.Bool("dns", p.dns != nil), zap.Bool("whois", p.whois != nil))

	var (
		fetch     *reachability.FetchResult
		fetchErr  error
		cert      models.CertificateInfo
		robotsTxt bool
		sitemap   bool
		dnsInfo   *models.DNSInfo
		domain    *models.DomainInfo
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()
		fetch, fetchErr = p.checker.Fetch(cctx, t.URL)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()
		cert = p.checker.CheckTLS(cctx, t.URL)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()
		robotsTxt = p.checker.CheckRobotsTxt(cctx, t.Origin)
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, p.timeout)
		defer cancel()
		sitemap = p.checker.CheckSitemap(cctx, t.Origin)
		return nil
	})
	if p.dns != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()
			dnsInfo = p.dns.Inspect(cctx, t.Host)
			return nil
		})
	}
	if p.whois != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()
			domain = p.whois.Lookup(cctx, t.Host)
			return nil
		})
	}

	// Sub-checks absorb their own failures so Wait never reports one
	_ = g.Wait()

	obs := verdict.Observation{
		URL:         t.URL,
		Certificate: cert,
		RobotsTxt:   robotsTxt,
		Sitemap:     sitemap,
		DNS:         dnsInfo,
		Domain:      domain,
	}

	if fetchErr != nil {
		logger.Warn("Fetch failed", zap.Error(fetchErr))
		p.recorder.SubcheckFailed("fetch")
	} else {
		obs.Fetch = fetch
		obs.SEO = seo.Analyze(fetch.Body)
		obs.SecurityHeaders = headers.Inspect(fetch.Header, t.HTTPS)
	}

	if t.HTTPS && !cert.Valid {
		p.recorder.SubcheckFailed("tls")
	}
	if dnsInfo != nil && dnsInfo.Error != "" {
		logger.Debug("DNS inspection failed", zap.String("error", dnsInfo.Error))
		p.recorder.SubcheckFailed("dns")
	}
	if domain != nil && domain.Error != "" {
		logger.Debug("WHOIS lookup failed", zap.String("error", domain.Error))
		p.recorder.SubcheckFailed("whois")
	}

	result := p.synthesizer.Synthesize(obs)
	p.recorder.ObserveProbe(result)

	fields := []zap.Field{
		zap.String("status", string(result.Website.Status)),
		zap.Bool("robots_txt", robotsTxt),
		zap.Bool("sitemap", sitemap),
		zap.Bool("certificate_valid", cert.Valid),
	}
	if result.Website.HTTPStatusCode != nil {
		fields = append(fields, zap.Int("status_code", *result.Website.HTTPStatusCode))
	}
	if result.Website.ResponseTime != nil {
		fields = append(fields, zap.Int64("response_time_ms", *result.Website.ResponseTime))
	}
	logger.Info("Probe completed", fields...)

	return result, nil
}
