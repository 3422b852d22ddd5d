// Package fetch provides the generic HTTP adapters behind the source
// registry: a selector-driven detail-page fetcher and an alert-email link
// extractor. Sources that fit the generic shape are pure configuration;
// only truly odd sites need a dedicated adapter.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobveille/internal/offer"
	"jobveille/internal/source"
	"jobveille/internal/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) jobveille/1.0"

	maxAttempts    = 3
	retryBackoff   = 2 * time.Second
	requestTimeout = 20 * time.Second
)

// Selectors maps offer fields to CSS selectors on a source's detail page.
// FullText is the only required one: a page where it matches nothing is
// reported as structurally missing.
type Selectors struct {
	FullText   string `mapstructure:"full-text"`
	Title      string `mapstructure:"title"`
	Company    string `mapstructure:"company"`
	City       string `mapstructure:"city"`
	Department string `mapstructure:"department"`
	Salary     string `mapstructure:"salary"`
	PostedAt   string `mapstructure:"posted-at"`
}

// PageFetcher retrieves an offer's detail page over HTTP and scrapes it
// with the configured selectors. It implements source.Fetcher.
type PageFetcher struct {
	client    *http.Client
	selectors Selectors
	userAgent string
	backoff   time.Duration
	logger    *zap.Logger
}

func NewPageFetcher(sel Selectors, logger *zap.Logger) *PageFetcher {
	return &PageFetcher{
		client:    &http.Client{Timeout: requestTimeout},
		selectors: sel,
		userAgent: defaultUserAgent,
		backoff:   retryBackoff,
		logger:    logger,
	}
}

// FetchOffer downloads and scrapes one detail page. Transport errors, 5xx
// and 429 are retried a fixed number of times; definitive statuses are
// reported immediately. Per the source.Fetcher contract every failure is
// folded into the Outcome.
func (f *PageFetcher) FetchOffer(ctx context.Context, url string) source.Outcome {
	var lastMsg string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := utils.WaitFor(ctx, f.backoff); err != nil {
				return source.Failure(fmt.Sprintf("récupération interrompue : %v", err))
			}
		}

		out, retry := f.fetchOnce(ctx, url)
		if !retry {
			return out
		}

		lastMsg = out.Message
		f.logger.Debug("retrying offer page fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.String("cause", lastMsg),
		)
	}

	return source.Failure(lastMsg)
}

// fetchOnce performs a single request. The second return value tells the
// caller whether the failure is worth another attempt.
func (f *PageFetcher) fetchOnce(ctx context.Context, url string) (source.Outcome, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return source.Failure(fmt.Sprintf("requête invalide : %v", err)), false
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return source.Failure(fmt.Sprintf("échec réseau : %v", err)), ctx.Err() == nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return f.scrape(resp), false
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return source.Failure(fmt.Sprintf("offre retirée (HTTP %d)", resp.StatusCode)), false
	case resp.StatusCode == http.StatusForbidden:
		return source.Failure("accès refusé (HTTP 403), protection anti-robot probable"), false
	case resp.StatusCode == http.StatusTooManyRequests:
		return source.Failure("trop de requêtes (HTTP 429)"), true
	case resp.StatusCode >= 500:
		return source.Failure(fmt.Sprintf("erreur serveur (HTTP %d)", resp.StatusCode)), true
	default:
		return source.Failure(fmt.Sprintf("statut HTTP inattendu : %d", resp.StatusCode)), false
	}
}

func (f *PageFetcher) scrape(resp *http.Response) source.Outcome {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return source.Failure(fmt.Sprintf("page illisible : %v", err))
	}

	fullText := selectText(doc, f.selectors.FullText)
	if fullText == "" {
		return source.Failure(source.MsgPageStructureMissing)
	}

	return source.Success(offer.Fields{
		FullText:   fullText,
		Title:      selectText(doc, f.selectors.Title),
		Company:    selectText(doc, f.selectors.Company),
		City:       selectText(doc, f.selectors.City),
		Department: selectText(doc, f.selectors.Department),
		Salary:     selectText(doc, f.selectors.Salary),
		PostedAt:   selectText(doc, f.selectors.PostedAt),
	})
}

// selectText returns the collapsed text of the first node matching sel, or
// "" when the selector is unconfigured or matches nothing.
func selectText(doc *goquery.Document, sel string) string {
	if sel == "" {
		return ""
	}
	return collapseSpace(doc.Find(sel).First().Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
