// Package models contains shared data structures used across the application
package models

import "time"

// Status is the health classification of a probed website
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// ProbeRequest is the body accepted by the probe endpoint
type ProbeRequest struct {
	URL string `json:"url"`
}

// TimingMetrics holds request phase durations in milliseconds
type TimingMetrics struct {
	DNSLookup    int64 `json:"dnsLookup"`
	TCPConnect   int64 `json:"tcpConnect"`
	TLSHandshake int64 `json:"tlsHandshake"`
	TTFB         int64 `json:"ttfb"`
	Download     int64 `json:"download"`
	Total        int64 `json:"total"`
}

// CertificateInfo describes the TLS certificate presented by the target
type CertificateInfo struct {
	Valid           bool       `json:"valid"`
	ExpiryDate      *time.Time `json:"expiryDate"`
	DaysUntilExpiry *int       `json:"daysUntilExpiry"`
	Issuer          *string    `json:"issuer"`
}

// CoreWebVitals is the synthesized LCP/FID/CLS triple
type CoreWebVitals struct {
	LCP int64   `json:"lcp"`
	FID int64   `json:"fid"`
	CLS float64 `json:"cls"`
}

// PerformanceBreakdown mirrors the timing phases shown by the dashboard
type PerformanceBreakdown struct {
	DNS      int64 `json:"dns"`
	Connect  int64 `json:"connect"`
	TTFB     int64 `json:"ttfb"`
	Download int64 `json:"download"`
}

// DNSInfo contains records observed for the target host
type DNSInfo struct {
	A        []string `json:"a,omitempty"`
	AAAA     []string `json:"aaaa,omitempty"`
	CNAME    string   `json:"cname,omitempty"`
	Server   string   `json:"server,omitempty"`
	LookupMs int64    `json:"lookupMs"`
	Error    string   `json:"error,omitempty"`
}

// DomainInfo contains registration data for the target's base domain
type DomainInfo struct {
	Name            string     `json:"name"`
	Registrar       string     `json:"registrar,omitempty"`
	ExpirationDate  *time.Time `json:"expirationDate,omitempty"`
	DaysUntilExpiry *int       `json:"daysUntilExpiry,omitempty"`
	Nameservers     []string   `json:"nameservers,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// SecurityHeaders summarizes the security-related response headers
type SecurityHeaders struct {
	Grade   string   `json:"grade"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// WebsiteMetrics is the health and performance verdict for one probe
type WebsiteMetrics struct {
	URL                  string                `json:"url"`
	Timestamp            time.Time             `json:"timestamp"`
	Status               Status                `json:"status"`
	HTTPStatusCode       *int                  `json:"httpStatusCode"`
	ResponseTime         *int64                `json:"responseTime"`
	TTFB                 *int64                `json:"ttfb"`
	DNSLookupTime        *int64                `json:"dnsLookupTime"`
	TCPConnectTime       *int64                `json:"tcpConnectTime"`
	TLSHandshakeTime     *int64                `json:"tlsHandshakeTime"`
	SSLCertificate       CertificateInfo       `json:"sslCertificate"`
	PerformanceScore     *int                  `json:"performanceScore"`
	ErrorRate            int                   `json:"errorRate"`
	CoreWebVitals        *CoreWebVitals        `json:"coreWebVitals"`
	MobileScore          *int                  `json:"mobileScore"`
	DesktopScore         *int                  `json:"desktopScore"`
	AccessibilityScore   *int                  `json:"accessibilityScore"`
	BestPracticesScore   *int                  `json:"bestPracticesScore"`
	PerformanceBreakdown *PerformanceBreakdown `json:"performanceBreakdown"`

	FinalURL        string           `json:"finalUrl,omitempty"`
	RedirectCount   int              `json:"redirectCount,omitempty"`
	ContentType     string           `json:"contentType,omitempty"`
	PageSize        int64            `json:"pageSize,omitempty"`
	SecurityHeaders *SecurityHeaders `json:"securityHeaders,omitempty"`
	DNS             *DNSInfo         `json:"dns,omitempty"`
	Domain          *DomainInfo      `json:"domain,omitempty"`
}

// TitleTag describes the document title
type TitleTag struct {
	Present bool    `json:"present"`
	Length  *int    `json:"length"`
	Content *string `json:"content"`
}

// MetaDescription describes the meta description tag
type MetaDescription struct {
	Present bool    `json:"present"`
	Length  *int    `json:"length"`
	Content *string `json:"content"`
}

// Headings holds heading counts
type Headings struct {
	H1Count            int  `json:"h1Count"`
	H2Count            int  `json:"h2Count"`
	HasProperStructure bool `json:"hasProperStructure"`
}

// Images holds image alt-text coverage
type Images struct {
	Total      int `json:"total"`
	WithAlt    int `json:"withAlt"`
	MissingAlt int `json:"missingAlt"`
}

// SEOFindings contains the signals extracted from the page markup
type SEOFindings struct {
	Score           *int            `json:"score"`
	TitleTag        TitleTag        `json:"titleTag"`
	MetaDescription MetaDescription `json:"metaDescription"`
	Headings        Headings        `json:"headings"`
	Images          Images          `json:"images"`
	CanonicalTag    bool            `json:"canonicalTag"`
	RobotsTxt       bool            `json:"robotsTxt"`
	Sitemap         bool            `json:"sitemap"`
	MobileFriendly  bool            `json:"mobileFriendly"`
	Indexable       bool            `json:"indexable"`
	Issues          []string        `json:"issues"`
	Recommendations []string        `json:"recommendations"`
}

// ProbeResponse is the top-level result structure
type ProbeResponse struct {
	Website WebsiteMetrics `json:"website"`
	SEO     SEOFindings    `json:"seo"`
}

// ErrorResponse is returned for requests that cannot be probed
type ErrorResponse struct {
	Error string `json:"error"`
}
