package enrich

import (
	"fmt"
	"strings"

	"jobveille/internal/offer"
	"jobveille/internal/source"
	"jobveille/internal/store"
)

// terminalSignals mark a fetch failure as permanent: the offer is gone from
// the site rather than temporarily unreachable.
var terminalSignals = []string{
	"404",
	"410",
	"expired",
	"gone",
	"expirée",
	source.MsgPageStructureMissing,
}

func isTerminalUnavailable(msg string) bool {
	msg = strings.ToLower(msg)
	for _, signal := range terminalSignals {
		if strings.Contains(msg, strings.ToLower(signal)) {
			return true
		}
	}
	return false
}

// decision is the classified result of one fetch: the patch to write, the
// status to move to ("" keeps the current one) and, for failures, a
// diagnostic message.
type decision struct {
	next    offer.Status
	patch   store.Patch
	failed  bool
	message string
}

func (d decision) transition() bool { return d.next != "" }

// classify applies the state-machine rules to a fetch outcome.
//
// Failures split on the terminal-unavailability signal (Expirée vs Ignorée).
// Successes merge the returned fields into the offer: enough merged content
// moves it to À analyser; a merged full text that still lacks any supporting
// field is a dead end (Ignorée); a fetch that brought fields but no full
// text yet leaves the offer in place for a later pass.
func classify(o *offer.Offer, out source.Outcome) decision {
	if !out.OK {
		next := offer.StatusIgnored
		if isTerminalUnavailable(out.Message) {
			next = offer.StatusExpired
		}
		return decision{
			next:    next,
			patch:   store.Patch{offer.ColStatus: string(next)},
			failed:  true,
			message: fmt.Sprintf("offre %s : %s", o.Identity(), out.Message),
		}
	}

	if out.Fields.IsBlank() {
		return decision{
			next:    offer.StatusIgnored,
			patch:   store.Patch{offer.ColStatus: string(offer.StatusIgnored)},
			failed:  true,
			message: fmt.Sprintf("offre %s : la page n'a fourni aucun champ exploitable", o.Identity()),
		}
	}

	merged := *o
	out.Fields.MergeInto(&merged)
	patch := fieldsPatch(o, &merged)

	switch {
	case merged.SufficientForAnalysis():
		patch[offer.ColStatus] = string(offer.StatusToAnalyze)
		return decision{next: offer.StatusToAnalyze, patch: patch}
	case strings.TrimSpace(merged.FullText) != "":
		// Full text captured but nothing to back it: re-fetching would not
		// improve it, so stop trying.
		patch[offer.ColStatus] = string(offer.StatusIgnored)
		return decision{
			next:    offer.StatusIgnored,
			patch:   patch,
			failed:  true,
			message: fmt.Sprintf("offre %s : contenu insuffisant pour l'analyse", o.Identity()),
		}
	default:
		// Partial enrichment: write what we got, keep waiting for the text.
		return decision{patch: patch}
	}
}

// fieldsPatch lists the content columns the merge actually changed.
func fieldsPatch(before, after *offer.Offer) store.Patch {
	patch := store.Patch{}
	diff := func(col, old, new string) {
		if old != new {
			patch[col] = new
		}
	}
	diff(offer.ColFullText, before.FullText, after.FullText)
	diff(offer.ColTitle, before.Title, after.Title)
	diff(offer.ColCompany, before.Company, after.Company)
	diff(offer.ColCity, before.City, after.City)
	diff(offer.ColDepartment, before.Department, after.Department)
	diff(offer.ColSalary, before.Salary, after.Salary)
	diff(offer.ColPostedAt, before.PostedAt, after.PostedAt)
	return patch
}
