package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"jobveille/internal/fetch"
	"jobveille/internal/offer"
	"jobveille/internal/source"
	"jobveille/internal/store"
)

const importAlertEmail = `<html><body>
<a href="https://www.example-emploi.fr/offre/O123?utm_source=alerte">Développeur Go (H/F)</a>
<a href="https://www.example-emploi.fr/desabonnement">Se désabonner</a>
</body></html>`

func newImportConfig(t *testing.T) (*Config, string) {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "alerte.html")
	if err := os.WriteFile(path, []byte(importAlertEmail), 0o600); err != nil {
		t.Fatalf("writing email fixture: %v", err)
	}

	config := &Config{
		Store: store.Config{Backend: store.BackendSQLite, DSN: filepath.Join(dir, "offres.db")},
		Sources: []SourceConfig{{
			Source: source.Source{
				Slug:     "example-emploi",
				Name:     "Example Emploi",
				Channel:  source.ChannelEmail,
				Creation: true,
			},
			Email: &fetch.EmailRules{
				LinkPattern: `https://www\.example-emploi\.fr/offre/(?P<id>O\d+)`,
				StripQuery:  true,
			},
		}},
	}
	return config, path
}

func TestImportCreatesOfferToComplete(t *testing.T) {
	ctx := context.Background()
	config, path := newImportConfig(t)

	if err := importEmail(ctx, config, zap.NewNop(), "example-emploi", path); err != nil {
		t.Fatalf("import: %v", err)
	}

	st, err := store.Open(config.Store, zap.NewNop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	offers, err := st.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(offers))
	}
	o := offers[0]
	if o.Status != offer.StatusToComplete {
		t.Errorf("status = %s, want À compléter", o.Status)
	}
	if o.OfferID != "O123" || o.Title != "Développeur Go (H/F)" {
		t.Errorf("stub fields not recorded: %+v", o)
	}
	if o.Source != "example-emploi" || o.CreatedVia != offer.CreatedViaEmail {
		t.Errorf("provenance not recorded: %q/%q", o.Source, o.CreatedVia)
	}
}

func TestReimportLeavesKnownOffersUntouched(t *testing.T) {
	ctx := context.Background()
	config, path := newImportConfig(t)

	if err := importEmail(ctx, config, zap.NewNop(), "example-emploi", path); err != nil {
		t.Fatalf("first import: %v", err)
	}

	// The pipeline moves the offer along and enriches its title.
	st, err := store.Open(config.Store, zap.NewNop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	offers, err := st.GetAll(ctx)
	if err != nil || len(offers) != 1 {
		t.Fatalf("seed state: %v (%d offers)", err, len(offers))
	}
	id := offers[0].ID
	if err := st.UpdateByID(ctx, id, store.Patch{
		offer.ColStatus: string(offer.StatusToAnalyze),
		offer.ColTitle:  "Ingénieur Go Confirmé",
	}); err != nil {
		t.Fatalf("simulating enrichment: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	if err := importEmail(ctx, config, zap.NewNop(), "example-emploi", path); err != nil {
		t.Fatalf("second import: %v", err)
	}

	st2, err := store.Open(config.Store, zap.NewNop())
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer st2.Close()

	offers, err = st2.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("re-import must not duplicate rows, got %d", len(offers))
	}
	got := offers[0]
	if got.Status != offer.StatusToAnalyze {
		t.Errorf("status reset by re-import: %s", got.Status)
	}
	if got.Title != "Ingénieur Go Confirmé" {
		t.Errorf("enriched title overwritten by re-import: %q", got.Title)
	}
}

func TestImportRejectsSourceWithoutCreation(t *testing.T) {
	ctx := context.Background()
	config, path := newImportConfig(t)
	config.Sources[0].Source.Creation = false

	if err := importEmail(ctx, config, zap.NewNop(), "example-emploi", path); err == nil {
		t.Error("expected an error for a source with creation disabled")
	}
}
