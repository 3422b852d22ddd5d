package offer_test

import (
	"testing"

	"jobveille/internal/offer"
)

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"À compléter", "À analyser", "À traiter", "Expirée", "Ignorée"}
	for _, s := range valid {
		got, err := offer.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "UNKNOWN", "Importée"} {
		if _, err := offer.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

func TestIsTransitionAllowed_FromToComplete(t *testing.T) {
	targets := []offer.Status{offer.StatusToAnalyze, offer.StatusExpired, offer.StatusIgnored}
	for _, to := range targets {
		if !offer.IsTransitionAllowed(offer.StatusToComplete, to) {
			t.Errorf("IsTransitionAllowed(À compléter → %s) should be true", to)
		}
	}
	if offer.IsTransitionAllowed(offer.StatusToComplete, offer.StatusToProcess) {
		t.Error("À compléter must not jump straight to À traiter")
	}
}

func TestIsTransitionAllowed_FromToAnalyze(t *testing.T) {
	if !offer.IsTransitionAllowed(offer.StatusToAnalyze, offer.StatusToProcess) {
		t.Error("IsTransitionAllowed(À analyser → À traiter) should be true")
	}
	for _, to := range []offer.Status{offer.StatusToComplete, offer.StatusExpired, offer.StatusIgnored} {
		if offer.IsTransitionAllowed(offer.StatusToAnalyze, to) {
			t.Errorf("IsTransitionAllowed(À analyser → %s) should be false", to)
		}
	}
}

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []offer.Status{offer.StatusExpired, offer.StatusIgnored, offer.StatusToProcess}
	targets := []offer.Status{
		offer.StatusToComplete, offer.StatusToAnalyze, offer.StatusToProcess,
		offer.StatusExpired, offer.StatusIgnored,
	}
	for _, from := range terminals {
		if !offer.IsTerminal(from) {
			t.Errorf("IsTerminal(%s) should be true", from)
		}
		for _, to := range targets {
			if offer.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

func TestSufficientForAnalysis(t *testing.T) {
	cases := []struct {
		name string
		o    offer.Offer
		want bool
	}{
		{"empty offer", offer.Offer{}, false},
		{"full text only", offer.Offer{FullText: "long description"}, false},
		{"full text and title", offer.Offer{FullText: "long description", Title: "Dev"}, true},
		{"full text and salary", offer.Offer{FullText: "long description", Salary: "45k"}, true},
		{"supporting field without text", offer.Offer{Company: "ACME", City: "Lyon"}, false},
		{"whitespace does not count", offer.Offer{FullText: "   ", Title: "Dev"}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.SufficientForAnalysis(); got != tt.want {
				t.Errorf("SufficientForAnalysis() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldsMergeInto_DoesNotOverwrite(t *testing.T) {
	o := offer.Offer{Title: "Ingénieur", Company: "ACME"}
	f := offer.Fields{Title: "Dev", City: "Paris", FullText: "text"}
	f.MergeInto(&o)

	if o.Title != "Ingénieur" {
		t.Errorf("existing title overwritten: %q", o.Title)
	}
	if o.City != "Paris" {
		t.Errorf("empty city not filled: %q", o.City)
	}
	if o.FullText != "text" {
		t.Errorf("full text not filled: %q", o.FullText)
	}
	if o.Company != "ACME" {
		t.Errorf("company changed: %q", o.Company)
	}
}

func TestFieldsIsBlank(t *testing.T) {
	if !(offer.Fields{}).IsBlank() {
		t.Error("zero Fields should be blank")
	}
	if !(offer.Fields{Salary: "  \t"}).IsBlank() {
		t.Error("whitespace-only Fields should be blank")
	}
	if (offer.Fields{City: "Nantes"}).IsBlank() {
		t.Error("Fields with a value should not be blank")
	}
}
