// Package output provides formatting options for probe results
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/commjoen/siteprobe/pkg/models"
)

// Formatter defines the interface for output formatters
type Formatter interface {
	Format(result *models.ProbeResponse) (string, error)
	Write(w io.Writer, result *models.ProbeResponse) error
}

// TextFormatter formats results as a human-readable report
type TextFormatter struct{}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	Pretty bool
}

// CSVFormatter formats results as a single CSV record with a header
type CSVFormatter struct{}

// NewFormatter creates a new formatter based on the format type
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return &TextFormatter{}, nil
	case "json":
		return &JSONFormatter{Pretty: true}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Format returns the formatted string
func (f *TextFormatter) Format(result *models.ProbeResponse) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, result); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *TextFormatter) Write(w io.Writer, result *models.ProbeResponse) error {
	separator := strings.Repeat("=", 60)
	lineSeparator := strings.Repeat("-", 60)
	site := result.Website
	seo := result.SEO

	fmt.Fprintf(w, "URL: %s\n", site.URL)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "%-22s %s\n", "Status", strings.ToUpper(string(site.Status)))
	fmt.Fprintf(w, "%-22s %s\n", "HTTP status", intOrDash(site.HTTPStatusCode))
	fmt.Fprintf(w, "%-22s %s\n", "Response time", msOrDash(site.ResponseTime))
	fmt.Fprintf(w, "%-22s %d%%\n", "Error rate", site.ErrorRate)
	if site.FinalURL != "" && site.FinalURL != site.URL {
		fmt.Fprintf(w, "%-22s %s (%d redirects)\n", "Final URL", site.FinalURL, site.RedirectCount)
	}
	if site.PerformanceBreakdown != nil {
		b := site.PerformanceBreakdown
		fmt.Fprintf(w, "%-22s dns %dms | connect %dms | ttfb %dms | download %dms\n",
			"Timing", b.DNS, b.Connect, b.TTFB, b.Download)
	}

	fmt.Fprintln(w, lineSeparator)
	fmt.Fprintf(w, "%-22s %s\n", "Certificate", certificateSummary(site.SSLCertificate))
	if site.SecurityHeaders != nil {
		fmt.Fprintf(w, "%-22s %s (missing: %s)\n", "Security headers",
			site.SecurityHeaders.Grade, joinOrDash(site.SecurityHeaders.Missing))
	}
	if site.DNS != nil {
		fmt.Fprintf(w, "%-22s %s\n", "DNS", dnsSummary(site.DNS))
	}
	if site.Domain != nil {
		fmt.Fprintf(w, "%-22s %s\n", "Domain", domainSummary(site.Domain))
	}

	fmt.Fprintln(w, lineSeparator)
	fmt.Fprintf(w, "%-22s %s\n", "Performance score", intOrDash(site.PerformanceScore))
	fmt.Fprintf(w, "%-22s %s / %s\n", "Mobile / desktop", intOrDash(site.MobileScore), intOrDash(site.DesktopScore))
	fmt.Fprintf(w, "%-22s %s\n", "Accessibility", intOrDash(site.AccessibilityScore))
	fmt.Fprintf(w, "%-22s %s\n", "Best practices", intOrDash(site.BestPracticesScore))
	if site.CoreWebVitals != nil {
		v := site.CoreWebVitals
		fmt.Fprintf(w, "%-22s LCP %dms | FID %dms | CLS %.2f\n", "Core Web Vitals", v.LCP, v.FID, v.CLS)
	}

	fmt.Fprintln(w, lineSeparator)
	fmt.Fprintf(w, "%-22s %s\n", "SEO score", intOrDash(seo.Score))
	if seo.TitleTag.Content != nil {
		fmt.Fprintf(w, "%-22s %s\n", "Title", *seo.TitleTag.Content)
	}
	fmt.Fprintf(w, "%-22s h1=%d h2=%d\n", "Headings", seo.Headings.H1Count, seo.Headings.H2Count)
	fmt.Fprintf(w, "%-22s %d total, %d missing alt\n", "Images", seo.Images.Total, seo.Images.MissingAlt)
	fmt.Fprintf(w, "%-22s robots.txt %s | sitemap.xml %s\n", "Crawl files", mark(seo.RobotsTxt), mark(seo.Sitemap))

	for _, issue := range seo.Issues {
		fmt.Fprintf(w, "  ✗ %s\n", issue)
	}
	for _, rec := range seo.Recommendations {
		fmt.Fprintf(w, "  → %s\n", rec)
	}

	fmt.Fprintln(w, separator)
	return nil
}

// Format returns the formatted string
func (f *JSONFormatter) Format(result *models.ProbeResponse) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, result); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *JSONFormatter) Write(w io.Writer, result *models.ProbeResponse) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}

// Format returns the formatted string
func (f *CSVFormatter) Format(result *models.ProbeResponse) (string, error) {
	var sb strings.Builder
	if err := f.Write(&sb, result); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write writes the formatted output to the writer
func (f *CSVFormatter) Write(w io.Writer, result *models.ProbeResponse) error {
	writer := csv.NewWriter(w)

	header := []string{"url", "status", "http_status", "response_time_ms", "error_rate", "tls_valid", "performance_score", "seo_score"}
	if err := writer.Write(header); err != nil {
		return err
	}

	site := result.Website
	row := []string{
		site.URL,
		string(site.Status),
		intOrEmpty(site.HTTPStatusCode),
		int64OrEmpty(site.ResponseTime),
		strconv.Itoa(site.ErrorRate),
		strconv.FormatBool(site.SSLCertificate.Valid),
		intOrEmpty(site.PerformanceScore),
		intOrEmpty(result.SEO.Score),
	}
	if err := writer.Write(row); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func certificateSummary(c models.CertificateInfo) string {
	if !c.Valid {
		return "✗ invalid or not HTTPS"
	}
	parts := []string{"✓ valid"}
	if c.Issuer != nil {
		parts = append(parts, "issuer "+*c.Issuer)
	}
	if c.DaysUntilExpiry != nil {
		parts = append(parts, fmt.Sprintf("expires in %d days", *c.DaysUntilExpiry))
	}
	return strings.Join(parts, ", ")
}

func dnsSummary(d *models.DNSInfo) string {
	if d.Error != "" {
		return "error: " + d.Error
	}
	ips := append(append([]string{}, d.A...), d.AAAA...)
	summary := joinOrDash(ips)
	if d.CNAME != "" {
		summary += " (CNAME " + d.CNAME + ")"
	}
	return fmt.Sprintf("%s in %dms", summary, d.LookupMs)
}

func domainSummary(d *models.DomainInfo) string {
	if d.Error != "" {
		return d.Name + " error: " + d.Error
	}
	summary := d.Name
	if d.Registrar != "" {
		summary += ", registrar " + d.Registrar
	}
	if d.DaysUntilExpiry != nil {
		summary += fmt.Sprintf(", expires in %d days", *d.DaysUntilExpiry)
	}
	return summary
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func msOrDash(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *v)
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func int64OrEmpty(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
