// Package verdict turns the raw observations of a probe into the published result.
//
// The performance, mobile, desktop, accessibility and best-practices scores and
// the Core Web Vitals are synthetic estimates: a tier chosen from the measured
// load time plus a bounded random perturbation. They are not browser
// measurements.
package verdict

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/commjoen/siteprobe/internal/reachability"
	"github.com/commjoen/siteprobe/internal/seo"
	"github.com/commjoen/siteprobe/pkg/models"
)

// SlowThresholdMs is the total load time above which a healthy site is degraded
const SlowThresholdMs = 3000

// RandomSource yields uniformly distributed values in [0,1)
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Observation is everything collected for one probe
type Observation struct {
	URL string
	// Fetch is nil when the fetch failed
	Fetch           *reachability.FetchResult
	SEO             models.SEOFindings
	SecurityHeaders *models.SecurityHeaders
	Certificate     models.CertificateInfo
	RobotsTxt       bool
	Sitemap         bool
	DNS             *models.DNSInfo
	Domain          *models.DomainInfo
}

// Synthesizer builds ProbeResponses
type Synthesizer struct {
	random RandomSource
	now    func() time.Time
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithRandom replaces the random source used for the synthetic scores
func WithRandom(r RandomSource) Option {
	return func(s *Synthesizer) {
		if r != nil {
			s.random = r
		}
	}
}

// WithClock replaces the clock used to timestamp results
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Synthesizer backed by the global random source
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		random: globalSource{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize combines the observation into the final result
func (s *Synthesizer) Synthesize(obs Observation) *models.ProbeResponse {
	if obs.Fetch == nil {
		return s.unreachable(obs)
	}

	fetch := obs.Fetch
	timing := fetch.Timing
	status := ClassifyStatus(fetch.StatusCode, timing.Total)

	findings := obs.SEO
	findings.RobotsTxt = obs.RobotsTxt
	findings.Sitemap = obs.Sitemap

	base := BasePerformance(timing.Total)
	performance := s.score(float64(base), 10)
	mobile := s.score(float64(base-10), 15)
	desktop := s.score(float64(base+5), 10)
	accessibility := s.score(75, 20)
	bestPractices := s.score(80, 15)
	vitals := s.coreWebVitals(timing.Total)

	statusCode := fetch.StatusCode
	website := models.WebsiteMetrics{
		URL:                obs.URL,
		Timestamp:          s.now().UTC(),
		Status:             status,
		HTTPStatusCode:     &statusCode,
		ResponseTime:       int64Ptr(timing.Total),
		TTFB:               int64Ptr(timing.TTFB),
		DNSLookupTime:      int64Ptr(timing.DNSLookup),
		TCPConnectTime:     int64Ptr(timing.TCPConnect),
		TLSHandshakeTime:   int64Ptr(timing.TLSHandshake),
		SSLCertificate:     obs.Certificate,
		PerformanceScore:   &performance,
		ErrorRate:          ErrorRate(status),
		CoreWebVitals:      &vitals,
		MobileScore:        &mobile,
		DesktopScore:       &desktop,
		AccessibilityScore: &accessibility,
		BestPracticesScore: &bestPractices,
		PerformanceBreakdown: &models.PerformanceBreakdown{
			DNS:      timing.DNSLookup,
			Connect:  timing.TCPConnect,
			TTFB:     timing.TTFB,
			Download: timing.Download,
		},
		FinalURL:        fetch.FinalURL,
		RedirectCount:   fetch.RedirectCount,
		ContentType:     fetch.ContentType,
		PageSize:        fetch.BytesRead,
		SecurityHeaders: obs.SecurityHeaders,
		DNS:             obs.DNS,
		Domain:          obs.Domain,
	}

	return &models.ProbeResponse{Website: website, SEO: findings}
}

// unreachable builds the result for a fetch that produced no response.
// Certificate, robots.txt and sitemap keep their own independent outcomes.
func (s *Synthesizer) unreachable(obs Observation) *models.ProbeResponse {
	return &models.ProbeResponse{
		Website: models.WebsiteMetrics{
			URL:            obs.URL,
			Timestamp:      s.now().UTC(),
			Status:         models.StatusDown,
			SSLCertificate: obs.Certificate,
			ErrorRate:      ErrorRate(models.StatusDown),
			DNS:            obs.DNS,
			Domain:         obs.Domain,
		},
		SEO: seo.Unreachable(obs.RobotsTxt, obs.Sitemap),
	}
}

// ClassifyStatus derives the health status from the final HTTP status and total time
func ClassifyStatus(statusCode int, totalMs int64) models.Status {
	if statusCode < 200 || statusCode >= 300 {
		if statusCode >= 500 {
			return models.StatusDown
		}
		return models.StatusDegraded
	}
	if totalMs > SlowThresholdMs {
		return models.StatusDegraded
	}
	return models.StatusUp
}

// ErrorRate maps a status to its published error rate percentage
func ErrorRate(status models.Status) int {
	switch status {
	case models.StatusUp:
		return 0
	case models.StatusDegraded:
		return 5
	default:
		return 100
	}
}

// BasePerformance selects the performance tier for a total load time
func BasePerformance(totalMs int64) int {
	switch {
	case totalMs < 1000:
		return 90
	case totalMs < 2000:
		return 70
	case totalMs < 3000:
		return 50
	default:
		return 30
	}
}

// score perturbs base by up to ±variance/2 and clamps to [0,100]
func (s *Synthesizer) score(base, variance float64) int {
	v := int(roundHalfUp(base + (s.random.Float64()-0.5)*variance))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (s *Synthesizer) coreWebVitals(totalMs int64) models.CoreWebVitals {
	return models.CoreWebVitals{
		LCP: int64(roundHalfUp(float64(totalMs)*0.8 + s.random.Float64()*500)),
		FID: int64(roundHalfUp(50 + s.random.Float64()*100)),
		CLS: roundHalfUp(s.random.Float64()*0.25*1000) / 1000,
	}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func int64Ptr(v int64) *int64 {
	return &v
}
