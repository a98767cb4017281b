// Package headers grades the security-related headers of a fetched response
package headers

import (
	"net/http"

	"github.com/commjoen/siteprobe/pkg/models"
)

// checked lists the graded headers; HSTS is only meaningful over HTTPS
var checked = []struct {
	name      string
	httpsOnly bool
}{
	{"Content-Security-Policy", false},
	{"X-Frame-Options", false},
	{"X-Content-Type-Options", false},
	{"Referrer-Policy", false},
	{"Permissions-Policy", false},
	{"Strict-Transport-Security", true},
}

// Inspect reports which security headers h carries and grades the response
func Inspect(h http.Header, https bool) *models.SecurityHeaders {
	result := &models.SecurityHeaders{
		Present: []string{},
		Missing: []string{},
	}

	for _, c := range checked {
		if c.httpsOnly && !https {
			continue
		}
		if h.Get(c.name) != "" {
			result.Present = append(result.Present, c.name)
		} else {
			result.Missing = append(result.Missing, c.name)
		}
	}

	result.Grade = Grade(len(result.Present), len(result.Present)+len(result.Missing))
	return result
}

// Grade maps the share of present headers onto the A+..F scale
func Grade(present, total int) string {
	if total == 0 {
		return "F"
	}
	missing := total - present
	switch {
	case missing == 0:
		return "A+"
	case missing == 1:
		return "A"
	case missing == 2:
		return "B"
	case missing == 3:
		return "C"
	case missing == 4:
		return "D"
	case present > 0:
		return "E"
	default:
		return "F"
	}
}
