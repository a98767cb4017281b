// Package seo extracts search-engine signals from raw page markup.
//
// The markup is walked with a tolerant streaming tokenizer rather than parsed
// into a DOM; only tag names, attributes and the title text are needed.
package seo

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/commjoen/siteprobe/pkg/models"
)

const (
	maxTitleLength           = 60
	minTitleLength           = 30
	maxMetaDescriptionLength = 160

	issuePenalty          = 10
	recommendationPenalty = 5
)

// Issue and recommendation messages
const (
	IssueMissingTitle       = "Missing title tag"
	IssueMissingDescription = "Missing meta description"
	IssueNoH1               = "No H1 tag found"
	IssueMissingViewport    = "Missing viewport meta tag for mobile devices"
	IssueFetchFailed        = "Failed to fetch website"

	RecTitleTooLong       = "Title tag exceeds 60 characters"
	RecTitleTooShort      = "Title tag is too short (under 30 characters)"
	RecDescriptionTooLong = "Meta description exceeds 160 characters"
	RecMultipleH1         = "Multiple H1 tags detected - consider using only one"
	RecAddCanonical       = "Consider adding a canonical tag"
	RecNoindex            = "Page is marked as noindex"
)

// signals is what a single pass over the markup collects
type signals struct {
	title       *string
	description *string
	h1, h2      int
	images      int
	imagesAlt   int
	canonical   bool
	viewport    bool
	noindex     bool
}

// Analyze scans body and returns the SEO findings. It is a pure function of
// its input: robots.txt and sitemap presence are left false for the caller.
func Analyze(body string) models.SEOFindings {
	s := scan(body)

	findings := models.SEOFindings{
		Headings: models.Headings{
			H1Count:            s.h1,
			H2Count:            s.h2,
			HasProperStructure: s.h1 == 1 && s.h2 > 0,
		},
		Images: models.Images{
			Total:      s.images,
			WithAlt:    s.imagesAlt,
			MissingAlt: s.images - s.imagesAlt,
		},
		CanonicalTag:    s.canonical,
		MobileFriendly:  s.viewport,
		Indexable:       !s.noindex,
		Issues:          []string{},
		Recommendations: []string{},
	}

	if s.title != nil {
		if content := strings.TrimSpace(*s.title); content != "" {
			length := utf8.RuneCountInString(content)
			findings.TitleTag = models.TitleTag{Present: true, Length: &length, Content: &content}
		}
	}
	if s.description != nil {
		if content := strings.TrimSpace(*s.description); content != "" {
			length := utf8.RuneCountInString(content)
			findings.MetaDescription = models.MetaDescription{Present: true, Length: &length, Content: &content}
		}
	}

	addIssue := func(msg string) { findings.Issues = append(findings.Issues, msg) }
	addRecommendation := func(msg string) { findings.Recommendations = append(findings.Recommendations, msg) }

	switch {
	case !findings.TitleTag.Present:
		addIssue(IssueMissingTitle)
	case *findings.TitleTag.Length > maxTitleLength:
		addRecommendation(RecTitleTooLong)
	case *findings.TitleTag.Length < minTitleLength:
		addRecommendation(RecTitleTooShort)
	}

	switch {
	case !findings.MetaDescription.Present:
		addIssue(IssueMissingDescription)
	case *findings.MetaDescription.Length > maxMetaDescriptionLength:
		addRecommendation(RecDescriptionTooLong)
	}

	switch {
	case s.h1 == 0:
		addIssue(IssueNoH1)
	case s.h1 > 1:
		addRecommendation(RecMultipleH1)
	}

	if findings.Images.MissingAlt > 0 {
		addIssue(fmt.Sprintf("%d images missing ALT attributes", findings.Images.MissingAlt))
	}
	if !findings.CanonicalTag {
		addRecommendation(RecAddCanonical)
	}
	if !findings.MobileFriendly {
		addIssue(IssueMissingViewport)
	}
	if !findings.Indexable {
		addRecommendation(RecNoindex)
	}

	score := Score(len(findings.Issues), len(findings.Recommendations))
	findings.Score = &score

	return findings
}

// Score applies the penalty policy and clamps the result to [0,100]
func Score(issues, recommendations int) int {
	score := 100 - issues*issuePenalty - recommendations*recommendationPenalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Unreachable returns the findings published when the page could not be fetched
func Unreachable(robotsTxt, sitemap bool) models.SEOFindings {
	return models.SEOFindings{
		RobotsTxt:       robotsTxt,
		Sitemap:         sitemap,
		Issues:          []string{IssueFetchFailed},
		Recommendations: []string{},
	}
}

// scan tokenizes the markup once, collecting every signal
func scan(body string) signals {
	var s signals
	z := html.NewTokenizer(strings.NewReader(body))
	inTitle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a read error, either way the scan is over
			return s

		case html.TextToken:
			if inTitle {
				// Raw keeps character references such as &amp; as written
				text := string(z.Raw())
				if s.title == nil {
					s.title = &text
				} else {
					joined := *s.title + text
					s.title = &joined
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = false
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := readAttrs(z, hasAttr)

			switch string(name) {
			case "title":
				if s.title == nil && tt == html.StartTagToken {
					empty := ""
					s.title = &empty
					inTitle = true
				}
			case "h1":
				s.h1++
			case "h2":
				s.h2++
			case "img":
				s.images++
				if attrs["alt"] != "" {
					s.imagesAlt++
				}
			case "link":
				if hasToken(attrs["rel"], "canonical") {
					s.canonical = true
				}
			case "meta":
				scanMeta(&s, attrs)
			}
		}
	}
}

func scanMeta(s *signals, attrs map[string]string) {
	name := strings.ToLower(strings.TrimSpace(attrs["name"]))
	content, hasContent := attrs["content"]

	switch name {
	case "description":
		if s.description == nil && hasContent {
			c := content
			s.description = &c
		}
	case "viewport":
		s.viewport = true
	}

	if hasContent && strings.Contains(strings.ToLower(content), "noindex") {
		s.noindex = true
	}
}

// readAttrs returns the first value of every attribute, keyed by lower-case name
func readAttrs(z *html.Tokenizer, hasAttr bool) map[string]string {
	attrs := make(map[string]string)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		k := string(key)
		if _, seen := attrs[k]; !seen {
			attrs[k] = string(val)
		}
	}
	return attrs
}

// hasToken reports whether the space separated list contains token, ignoring case
func hasToken(list, token string) bool {
	for _, field := range strings.Fields(list) {
		if strings.EqualFold(field, token) {
			return true
		}
	}
	return false
}
