package reachability

import (
	"context"
	"crypto/x509"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/commjoen/siteprobe/pkg/models"
)

// CheckTLS validates the certificate served for an HTTPS URL.
//
// Non-HTTPS URLs are a normal observation and yield an invalid result with no
// details. For HTTPS a HEAD request is sent without following redirects so the
// certificate inspected belongs to the requested host; valid mirrors a 2xx/3xx
// answer. Expiry and issuer are read from the leaf certificate of that handshake.
func (c *Checker) CheckTLS(ctx context.Context, urlStr string) models.CertificateInfo {
	result := models.CertificateInfo{}

	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme != "https" {
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, urlStr, nil)
	if err != nil {
		return result
	}
	req.Header.Set("User-Agent", c.userAgent)

	client := &http.Client{
		Timeout: c.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: c.httpClient.Transport,
	}

	resp, err := client.Do(req)
	if err != nil {
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return result
	}
	result.Valid = true

	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		return result
	}
	describeCertificate(&result, resp.TLS.PeerCertificates[0], time.Now())

	return result
}

// describeCertificate fills expiry and issuer details from a leaf certificate
func describeCertificate(info *models.CertificateInfo, cert *x509.Certificate, now time.Time) {
	expiry := cert.NotAfter.UTC()
	days := int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))
	info.ExpiryDate = &expiry
	info.DaysUntilExpiry = &days

	issuer := cert.Issuer.CommonName
	if issuer == "" && len(cert.Issuer.Organization) > 0 {
		issuer = cert.Issuer.Organization[0]
	}
	if issuer != "" {
		info.Issuer = &issuer
	}

	// Check if certificate is expired or not yet valid
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		info.Valid = false
	}
}
