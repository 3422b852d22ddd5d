// Package enrich drives the offer enrichment batch: it fetches each
// candidate's detail page through its source adapter, classifies the result
// against the status state machine and writes the transition back to the
// store.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"jobveille/internal/offer"
	"jobveille/internal/source"
	"jobveille/internal/store"
)

// OfferStore is the slice of the store the runner needs.
type OfferStore interface {
	UpdateByID(ctx context.Context, id string, patch store.Patch) error
}

// FetcherResolver resolves an offer URL to its enrichment fetch adapter.
type FetcherResolver interface {
	FetcherFor(url string) (source.Fetcher, bool)
}

// Result aggregates a run: counts plus one human-readable diagnostic per
// failure, each naming the offer and the cause.
type Result struct {
	Enriched int
	Failed   int
	Messages []string
}

type Runner struct {
	store    OfferStore
	fetchers FetcherResolver
	logger   *zap.Logger
	events   chan<- Event
}

// New builds a runner. The events channel may be nil; when provided the
// caller must drain it for the duration of Run.
func New(st OfferStore, fetchers FetcherResolver, logger *zap.Logger, events chan<- Event) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: st, fetchers: fetchers, logger: logger, events: events}
}

// Run processes the candidates strictly one at a time, in input order. The
// pace is deliberate: target sites tolerate slow sequential traffic, and
// parallel fetches are exactly what their anti-bot defenses look for.
//
// Cancellation is cooperative: the context is polled before each candidate;
// once done, remaining candidates are left untouched and excluded from all
// counts. Writes already applied are not rolled back. A persistence failure
// on one offer never aborts the batch.
func (r *Runner) Run(ctx context.Context, candidates []*offer.Offer) Result {
	var res Result
	total := len(candidates)

	for i, o := range candidates {
		if ctx.Err() != nil {
			r.logger.Info("enrichment interrupted",
				zap.Int("processed", i),
				zap.Int("remaining", total-i),
			)
			break
		}

		r.emit(Event{Kind: EventProgress, Offer: o, Index: i, Total: total})

		fetcher, ok := r.fetchers.FetcherFor(o.URL)
		if !ok {
			// Callers filter out offers without an adapter; one slipping
			// through is not eligible rather than failed.
			r.logger.Debug("no fetch adapter for offer", zap.String("url", o.URL))
			continue
		}

		r.logger.Debug("fetching offer",
			zap.String("offer", o.Identity()),
			zap.String("url", o.URL),
		)

		d := classify(o, fetcher.FetchOffer(ctx, o.URL))

		if d.transition() {
			r.emit(Event{Kind: EventTransition, Offer: o, From: o.Status, To: d.next})
		}

		if len(d.patch) > 0 {
			if err := r.store.UpdateByID(ctx, o.ID, d.patch); err != nil {
				res.Failed++
				res.Messages = append(res.Messages,
					"offre "+o.Identity()+" : écriture impossible : "+err.Error())
				r.logger.Warn("offer write failed",
					zap.String("offer", o.Identity()),
					zap.Error(err),
				)
				continue
			}
			apply(o, d)
		}

		if d.failed {
			res.Failed++
			res.Messages = append(res.Messages, d.message)
			r.logger.Info("offer routed out of the pipeline",
				zap.String("offer", o.Identity()),
				zap.String("status", string(o.Status)),
			)
		} else {
			res.Enriched++
		}
	}

	r.logger.Info("enrichment finished",
		zap.Int("enriched", res.Enriched),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (r *Runner) emit(e Event) {
	if r.events != nil {
		r.events <- e
	}
}

// apply mirrors a successful write onto the in-memory offer.
func apply(o *offer.Offer, d decision) {
	set := func(dst *string, col string, p store.Patch) {
		if v, ok := p[col]; ok {
			*dst = v.(string)
		}
	}
	set(&o.FullText, offer.ColFullText, d.patch)
	set(&o.Title, offer.ColTitle, d.patch)
	set(&o.Company, offer.ColCompany, d.patch)
	set(&o.City, offer.ColCity, d.patch)
	set(&o.Department, offer.ColDepartment, d.patch)
	set(&o.Salary, offer.ColSalary, d.patch)
	set(&o.PostedAt, offer.ColPostedAt, d.patch)
	if d.transition() {
		o.Status = d.next
	}
}
