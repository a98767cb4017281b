package reachability

import (
	"context"
	"net/http"
	"strings"
)

// CheckRobotsTxt reports whether {origin}/robots.txt answers with a 2xx status
func (c *Checker) CheckRobotsTxt(ctx context.Context, origin string) bool {
	return c.CheckResource(ctx, origin, "/robots.txt")
}

// CheckSitemap reports whether {origin}/sitemap.xml answers with a 2xx status
func (c *Checker) CheckSitemap(ctx context.Context, origin string) bool {
	return c.CheckResource(ctx, origin, "/sitemap.xml")
}

// CheckResource sends a HEAD request for path under origin. Any transport
// error or non-2xx status is reported as false.
func (c *Checker) CheckResource(ctx context.Context, origin, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, strings.TrimSuffix(origin, "/")+path, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
