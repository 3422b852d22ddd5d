package analyze

import (
	"fmt"
	"strings"

	_ "embed"

	"jobveille/internal/aijson"
	"jobveille/internal/offer"
)

//go:embed prompt.md
var promptTemplate string

// systemInstruction frames every analysis call; the offer-specific content
// travels in the message.
const systemInstruction = "Tu es un assistant de veille d'emploi. Tu évalues des offres " +
	"pour un candidat et tu réponds exclusivement en JSON strict."

func buildMessage(o *offer.Offer, cfg aijson.CriteriaConfig) string {
	prompt := promptTemplate
	prompt = strings.ReplaceAll(prompt, "{{CRITERES_REDHIBITOIRES}}", numberedList(cfg.Disqualifiers, "aucun"))
	prompt = strings.ReplaceAll(prompt, "{{SCORES_OPTIONNELS}}", numberedList(cfg.OptionalScores, "aucune"))
	prompt = strings.ReplaceAll(prompt, "{{CLES_JSON}}", strings.Join(aijson.ExpectedKeys(cfg), ", "))
	prompt = strings.ReplaceAll(prompt, "{{LONGUEUR_MAX}}", fmt.Sprintf("%d", cfg.MaxLen()))
	prompt = strings.ReplaceAll(prompt, "{{OFFRE}}", offerBlock(o))
	return prompt
}

// numberedList renders configured slots up to the first blank one, matching
// how the expected JSON keys are counted.
func numberedList(labels []string, none string) string {
	var b strings.Builder
	n := 0
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			break
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, strings.TrimSpace(l))
	}
	if n == 0 {
		return none
	}
	return strings.TrimRight(b.String(), "\n")
}

func offerBlock(o *offer.Offer) string {
	var b strings.Builder
	for _, line := range []struct{ label, value string }{
		{"Poste", o.Title},
		{"Entreprise", o.Company},
		{"Ville", o.City},
		{"Service", o.Department},
		{"Salaire", o.Salary},
		{"Date de publication", o.PostedAt},
	} {
		if strings.TrimSpace(line.value) != "" {
			fmt.Fprintf(&b, "%s : %s\n", line.label, line.value)
		}
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(o.FullText))
	return b.String()
}
