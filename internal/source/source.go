// Package source describes offer origins and resolves them to their
// capability adapters.
package source

import (
	"context"
	"strings"

	"jobveille/internal/offer"
)

// Channel distinguishes how a source delivers offers.
type Channel string

const (
	// ChannelEmail sources send alert emails whose bodies carry offer links.
	ChannelEmail Channel = "email"
	// ChannelPages sources are harvested detail pages dropped in a folder.
	ChannelPages Channel = "pages"
)

// Source identifies a named origin with independent activation flags per
// pipeline stage.
type Source struct {
	Slug    string   `mapstructure:"slug"`
	Name    string   `mapstructure:"name"`
	Aliases []string `mapstructure:"aliases"`
	Channel Channel  `mapstructure:"channel"`
	// Domains are URL substrings this source claims for fetch resolution.
	Domains []string `mapstructure:"domains"`

	Creation   bool `mapstructure:"creation"`
	Enrichment bool `mapstructure:"enrichment"`
	Analysis   bool `mapstructure:"analysis"`
}

// Stub is an offer skeleton extracted from an alert email, enough to create
// a row in status À compléter.
type Stub struct {
	OfferID string
	URL     string
	Title   string
	Company string
	City    string
}

// MsgPageStructureMissing is the failure message a fetch adapter reports
// when the page loads but the expected offer markup is absent, typically a
// removed offer behind a soft 200. The orchestrator treats it as a terminal
// signal.
const MsgPageStructureMissing = "structure de page introuvable"

// Outcome is the transient result of an enrichment fetch. It is never
// persisted: either OK with a partial field bag, or a failure message the
// orchestrator classifies.
type Outcome struct {
	OK      bool
	Fields  offer.Fields
	Message string
}

// Success wraps a field bag in a successful outcome.
func Success(f offer.Fields) Outcome { return Outcome{OK: true, Fields: f} }

// Failure wraps a diagnostic message; every fetch failure mode (network,
// HTTP status, anti-bot, unparsable content) is folded into this variant.
func Failure(msg string) Outcome { return Outcome{Message: strings.TrimSpace(msg)} }

// EmailCreator extracts offer stubs from an alert email body.
type EmailCreator interface {
	ExtractOffers(html string) ([]Stub, error)
}

// HarvestMarker marks a source whose offers are created from harvested
// pages; the actual extraction lives in per-source leaf modules.
type HarvestMarker interface {
	Harvestable()
}

// Fetcher retrieves and parses an offer's detail page. Implementations must
// never return an error: all failures are folded into the Outcome.
type Fetcher interface {
	FetchOffer(ctx context.Context, url string) Outcome
}
