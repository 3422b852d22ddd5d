package aijson

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Key names the scoring prompt instructs the model to produce.
const (
	KeySummary = "Résumé_IA"
	KeyVerdict = "Verdict"

	keyCriterionPrefix = "Critère_Rédhibitoire_"
	keyOptionalPrefix  = "Score_Optionnel_"
)

// baseTextKeys are always expected and must be strings.
var baseTextKeys = []string{KeySummary, KeyVerdict}

// requiredScoreKeys are the four incontournable dimensions.
var requiredScoreKeys = []string{
	"Score_Localisation",
	"Score_Salaire",
	"Score_Culture",
	"Score_Qualité_Offre",
}

const (
	scoreMin = 0
	scoreMax = 20

	// defaultMaxCriterionLen caps a disqualifying-criterion justification.
	defaultMaxCriterionLen = 300
)

// CriteriaConfig defines the user-configured slots that shape the expected
// key set. Slots are counted consecutively from the first; the first blank
// label ends the configured range, later labels are ignored.
type CriteriaConfig struct {
	// Disqualifiers are the labels of the configured disqualifying
	// criteria; each yields one Critère_Rédhibitoire_<i> key carrying a
	// textual justification, not a flag.
	Disqualifiers []string `mapstructure:"disqualifiers"`
	// OptionalScores are the labels of the optional score dimensions; each
	// yields one Score_Optionnel_<i> key.
	OptionalScores []string `mapstructure:"optional-scores"`
	// MaxCriterionLen caps the justification length in runes; 0 means the
	// default.
	MaxCriterionLen int `mapstructure:"max-criterion-length"`
}

// MaxLen returns the effective justification length cap.
func (c CriteriaConfig) MaxLen() int {
	if c.MaxCriterionLen > 0 {
		return c.MaxCriterionLen
	}
	return defaultMaxCriterionLen
}

// countConfigured counts labels consecutively from the first, stopping at
// the first unconfigured slot.
func countConfigured(labels []string) int {
	n := 0
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			break
		}
		n++
	}
	return n
}

// ExpectedKeys computes the full expected key set for the configuration.
func ExpectedKeys(cfg CriteriaConfig) []string {
	keys := make([]string, 0, len(baseTextKeys)+len(requiredScoreKeys)+8)
	keys = append(keys, baseTextKeys...)
	for i := 1; i <= countConfigured(cfg.Disqualifiers); i++ {
		keys = append(keys, fmt.Sprintf("%s%d", keyCriterionPrefix, i))
	}
	keys = append(keys, requiredScoreKeys...)
	for i := 1; i <= countConfigured(cfg.OptionalScores); i++ {
		keys = append(keys, fmt.Sprintf("%s%d", keyOptionalPrefix, i))
	}
	return keys
}

// Conformance checks the parsed object against the computed key set. All
// violations are collected rather than failing fast; an empty slice means
// the object conforms.
func Conformance(obj map[string]any, cfg CriteriaConfig) []string {
	var errs []string

	expected := ExpectedKeys(cfg)
	expectedSet := make(map[string]bool, len(expected))
	for _, k := range expected {
		expectedSet[k] = true
	}

	for _, k := range expected {
		if _, ok := obj[k]; !ok {
			errs = append(errs, fmt.Sprintf("clé attendue absente : %s", k))
		}
	}

	var extras []string
	for k := range obj {
		if !expectedSet[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		errs = append(errs, fmt.Sprintf("clé inattendue : %s", k))
	}

	for _, k := range baseTextKeys {
		if v, ok := obj[k]; ok {
			if _, isString := v.(string); !isString {
				errs = append(errs, fmt.Sprintf("champ %s : chaîne attendue, reçu %s", k, typeName(v)))
			}
		}
	}

	maxLen := cfg.MaxLen()
	for i := 1; i <= countConfigured(cfg.Disqualifiers); i++ {
		k := fmt.Sprintf("%s%d", keyCriterionPrefix, i)
		v, ok := obj[k]
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString {
			// The criterion carries a justification, never a bare flag.
			errs = append(errs, fmt.Sprintf("champ %s : justification textuelle attendue, reçu %s", k, typeName(v)))
			continue
		}
		if utf8.RuneCountInString(s) > maxLen {
			errs = append(errs, fmt.Sprintf("champ %s : justification trop longue (%d > %d caractères)", k, utf8.RuneCountInString(s), maxLen))
		}
	}

	scoreKeys := append(append([]string{}, requiredScoreKeys...), optionalKeys(cfg)...)
	for _, k := range scoreKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		n, isInt := asInteger(v)
		if !isInt {
			errs = append(errs, fmt.Sprintf("champ %s : entier attendu, reçu %s", k, typeName(v)))
			continue
		}
		if n < scoreMin || n > scoreMax {
			errs = append(errs, fmt.Sprintf("champ %s : %d hors de l'intervalle [%d, %d]", k, n, scoreMin, scoreMax))
		}
	}

	return errs
}

func optionalKeys(cfg CriteriaConfig) []string {
	var keys []string
	for i := 1; i <= countConfigured(cfg.OptionalScores); i++ {
		keys = append(keys, fmt.Sprintf("%s%d", keyOptionalPrefix, i))
	}
	return keys
}

// asInteger accepts the numeric types encoding/json may produce, requiring
// an integral value.
func asInteger(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "booléen"
	case string:
		return "chaîne"
	case float64, int:
		return "nombre"
	case []any:
		return "tableau"
	case map[string]any:
		return "objet"
	default:
		return fmt.Sprintf("%T", v)
	}
}
