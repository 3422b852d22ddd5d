package fetch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobveille/internal/source"
)

// EmailRules configures the generic alert-email extractor for one source.
type EmailRules struct {
	// LinkPattern matches offer URLs inside the email body. An optional
	// named group "id" captures the source's offer identifier.
	LinkPattern string `mapstructure:"link-pattern"`
	// StripQuery drops the query string from extracted URLs; alert links
	// usually carry tracking parameters that break deduplication.
	StripQuery bool `mapstructure:"strip-query"`
}

// LinkExtractor scans an alert-email HTML body for offer links and yields
// one stub per distinct offer. It implements source.EmailCreator.
type LinkExtractor struct {
	pattern    *regexp.Regexp
	idGroup    int
	stripQuery bool
	logger     *zap.Logger
}

func NewLinkExtractor(rules EmailRules, logger *zap.Logger) (*LinkExtractor, error) {
	re, err := regexp.Compile(rules.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}

	idGroup := -1
	for i, name := range re.SubexpNames() {
		if name == "id" {
			idGroup = i
		}
	}

	return &LinkExtractor{
		pattern:    re,
		idGroup:    idGroup,
		stripQuery: rules.StripQuery,
		logger:     logger,
	}, nil
}

// ExtractOffers walks every anchor of the email body and keeps those whose
// href matches the link pattern. Duplicate links, which alert emails repeat
// for the image and the title of the same offer, collapse into one stub.
// The anchor text becomes the stub title when it looks like one.
func (e *LinkExtractor) ExtractOffers(html string) ([]source.Stub, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse email body: %w", err)
	}

	var stubs []source.Stub
	index := make(map[string]int)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := e.pattern.FindStringSubmatch(href)
		if m == nil {
			return
		}

		url := m[0]
		if e.stripQuery {
			if q := strings.IndexByte(url, '?'); q != -1 {
				url = url[:q]
			}
		}

		i, seen := index[url]
		if !seen {
			stub := source.Stub{URL: url}
			if e.idGroup > 0 && e.idGroup < len(m) {
				stub.OfferID = m[e.idGroup]
			}
			index[url] = len(stubs)
			stubs = append(stubs, stub)
			i = len(stubs) - 1
		}

		if stubs[i].Title == "" {
			if title := collapseSpace(a.Text()); looksLikeTitle(title) {
				stubs[i].Title = title
			}
		}
	})

	e.logger.Debug("extracted offer links from email", zap.Int("count", len(stubs)))

	return stubs, nil
}

// looksLikeTitle filters anchor texts that are call-to-action labels rather
// than offer titles.
func looksLikeTitle(s string) bool {
	if len(s) < 4 {
		return false
	}
	lower := strings.ToLower(s)
	for _, cta := range []string{"voir l'offre", "postuler", "cliquez", "en savoir plus"} {
		if strings.Contains(lower, cta) {
			return false
		}
	}
	return true
}
