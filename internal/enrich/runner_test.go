package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"jobveille/internal/offer"
	"jobveille/internal/source"
	"jobveille/internal/store"
)

type recordingStore struct {
	patches []store.Patch
	ids     []string
	failFor map[string]error
}

func (s *recordingStore) UpdateByID(_ context.Context, id string, patch store.Patch) error {
	if err, ok := s.failFor[id]; ok {
		return err
	}
	s.ids = append(s.ids, id)
	s.patches = append(s.patches, patch)
	return nil
}

type fixedResolver struct {
	fetcher source.Fetcher
}

func (r fixedResolver) FetcherFor(string) (source.Fetcher, bool) {
	if r.fetcher == nil {
		return nil, false
	}
	return r.fetcher, true
}

type outcomeFetcher struct {
	outcomes map[string]source.Outcome
	calls    []string
}

func (f *outcomeFetcher) FetchOffer(_ context.Context, url string) source.Outcome {
	f.calls = append(f.calls, url)
	return f.outcomes[url]
}

func candidate(id, url string) *offer.Offer {
	return &offer.Offer{ID: id, OfferID: id, URL: url, Status: offer.StatusToComplete}
}

func TestRunClassifiesTerminalFailureAsExpired(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Failure("404 not found"),
	}}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusExpired {
		t.Errorf("status = %s, want Expirée", o.Status)
	}
	if res.Enriched != 0 || res.Failed != 1 {
		t.Errorf("result = %+v, want enriched 0 / failed 1", res)
	}
	if len(res.Messages) != 1 || !strings.Contains(res.Messages[0], "I1") {
		t.Errorf("diagnostic should name the offer: %v", res.Messages)
	}
	if got := st.patches[0][offer.ColStatus]; got != string(offer.StatusExpired) {
		t.Errorf("written status = %v", got)
	}
}

func TestRunClassifiesTransientFailureAsIgnored(t *testing.T) {
	for _, msg := range []string{"timeout awaiting response", "blocked by datadome challenge", "connection refused"} {
		o := candidate("I1", "u1")
		st := &recordingStore{}
		fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{"u1": source.Failure(msg)}}

		New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

		if o.Status != offer.StatusIgnored {
			t.Errorf("message %q: status = %s, want Ignorée", msg, o.Status)
		}
	}
}

func TestRunClassifiesStructureMissingAsExpired(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Failure(source.MsgPageStructureMissing),
	}}

	New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusExpired {
		t.Errorf("status = %s, want Expirée", o.Status)
	}
}

func TestRunBlankFieldsGoToIgnored(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{Salary: "   "}),
	}}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusIgnored {
		t.Errorf("status = %s, want Ignorée", o.Status)
	}
	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
}

func TestRunSufficientFieldsGoToAnalyze(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{FullText: "une longue description du poste", Title: "Dev"}),
	}}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusToAnalyze {
		t.Errorf("status = %s, want À analyser", o.Status)
	}
	if res.Enriched != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want enriched 1 / failed 0", res)
	}
	p := st.patches[0]
	if p[offer.ColFullText] != "une longue description du poste" {
		t.Errorf("full text not persisted: %v", p)
	}
}

func TestRunPartialEnrichmentKeepsStatus(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{Salary: "45-50k", PostedAt: "2026-08-12"}),
	}}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusToComplete {
		t.Errorf("status = %s, want unchanged À compléter", o.Status)
	}
	if o.Salary != "45-50k" {
		t.Errorf("partial fields not applied: %q", o.Salary)
	}
	if res.Enriched != 1 {
		t.Errorf("partial enrichment should count as enriched: %+v", res)
	}
	if _, ok := st.patches[0][offer.ColStatus]; ok {
		t.Error("no status column should be written without a transition")
	}
}

func TestRunFullTextWithoutSupportGoesToIgnored(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{FullText: "texte seul, sans aucun autre champ"}),
	}}

	New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if o.Status != offer.StatusIgnored {
		t.Errorf("status = %s, want Ignorée", o.Status)
	}
	if o.FullText == "" {
		t.Error("full text should still be persisted for inspection")
	}
}

func TestRunPersistenceFailureDoesNotAbortBatch(t *testing.T) {
	o1 := candidate("I1", "u1")
	o2 := candidate("I2", "u2")
	st := &recordingStore{failFor: map[string]error{"I1": errors.New("disque plein")}}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
		"u2": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
	}}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o1, o2})

	if res.Failed != 1 || res.Enriched != 1 {
		t.Errorf("result = %+v, want 1 failure and 1 success", res)
	}
	if !strings.Contains(strings.Join(res.Messages, "\n"), "I1") {
		t.Errorf("diagnostic should name the failed offer: %v", res.Messages)
	}
	if o1.Status != offer.StatusToComplete {
		t.Error("in-memory status must not change when the write fails")
	}
	if o2.Status != offer.StatusToAnalyze {
		t.Error("second candidate should still be processed")
	}
}

// cancellingFetcher cancels the run while fetching a chosen URL, so the
// cooperative poll fires before the next candidate.
type cancellingFetcher struct {
	inner    *outcomeFetcher
	cancelOn string
	cancel   context.CancelFunc
}

func (f *cancellingFetcher) FetchOffer(ctx context.Context, url string) source.Outcome {
	if url == f.cancelOn {
		f.cancel()
	}
	return f.inner.FetchOffer(ctx, url)
}

func TestRunCancellationLeavesRemainingUntouched(t *testing.T) {
	offers := []*offer.Offer{candidate("I1", "u1"), candidate("I2", "u2"), candidate("I3", "u3")}
	st := &recordingStore{}
	inner := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
		"u2": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
		"u3": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{inner: inner, cancelOn: "u2", cancel: cancel}

	res := New(st, fixedResolver{fetcher}, zap.NewNop(), nil).Run(ctx, offers)

	if got := len(inner.calls); got != 2 {
		t.Errorf("fetch calls = %d, want 2 (I3 must never be visited)", got)
	}
	if res.Enriched+res.Failed != 2 {
		t.Errorf("counts cover %d items, want 2", res.Enriched+res.Failed)
	}
	if offers[1].Status != offer.StatusToAnalyze {
		t.Error("candidate in flight at cancellation should still complete")
	}
	if offers[2].Status != offer.StatusToComplete {
		t.Error("unvisited candidate must be untouched")
	}
}

// depthMeasuringStore records how many events had been emitted when the
// write landed.
type depthMeasuringStore struct {
	events       chan Event
	depthAtWrite int
}

func (s *depthMeasuringStore) UpdateByID(context.Context, string, store.Patch) error {
	s.depthAtWrite = len(s.events)
	return nil
}

func TestRunEmitsTransitionBeforeWrite(t *testing.T) {
	o := candidate("I1", "u1")
	events := make(chan Event, 8)
	st := &depthMeasuringStore{events: events}
	fetcher := &outcomeFetcher{outcomes: map[string]source.Outcome{
		"u1": source.Success(offer.Fields{FullText: "texte", Title: "Dev"}),
	}}

	New(st, fixedResolver{fetcher}, zap.NewNop(), events).Run(context.Background(), []*offer.Offer{o})
	close(events)

	var kinds []EventKind
	for e := range events {
		kinds = append(kinds, e.Kind)
		if e.Kind == EventTransition {
			if e.From != offer.StatusToComplete || e.To != offer.StatusToAnalyze {
				t.Errorf("transition %s → %s, want À compléter → À analyser", e.From, e.To)
			}
		}
	}
	if len(kinds) != 2 || kinds[0] != EventProgress || kinds[1] != EventTransition {
		t.Fatalf("events = %v, want [progress transition]", kinds)
	}
	if st.depthAtWrite != 2 {
		t.Errorf("transition event must be emitted before the write (depth %d)", st.depthAtWrite)
	}
}

func TestRunSkipsOffersWithoutAdapter(t *testing.T) {
	o := candidate("I1", "u1")
	st := &recordingStore{}

	res := New(st, fixedResolver{nil}, zap.NewNop(), nil).Run(context.Background(), []*offer.Offer{o})

	if res.Enriched != 0 || res.Failed != 0 {
		t.Errorf("ineligible offer must not be counted: %+v", res)
	}
	if o.Status != offer.StatusToComplete {
		t.Errorf("ineligible offer must be untouched, got %s", o.Status)
	}
}
