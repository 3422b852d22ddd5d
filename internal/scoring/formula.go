// Package scoring turns per-dimension scores into one total through a
// user-configurable numeric expression.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

// ScoreNames are the eight score variables bound on every evaluation, in
// slot order: the four incontournable dimensions, then the optional ones.
var ScoreNames = []string{
	"Score_Localisation",
	"Score_Salaire",
	"Score_Culture",
	"Score_Qualité_Offre",
	"Score_Optionnel_1",
	"Score_Optionnel_2",
	"Score_Optionnel_3",
	"Score_Optionnel_4",
}

// CoefNames are the matching coefficient variables.
var CoefNames = []string{
	"Coef_Localisation",
	"Coef_Salaire",
	"Coef_Culture",
	"Coef_Qualité_Offre",
	"Coef_Optionnel_1",
	"Coef_Optionnel_2",
	"Coef_Optionnel_3",
	"Coef_Optionnel_4",
}

// DefaultFormula is the built-in weighted average. Dimensions scored 0 are
// excluded from both the numerator and the denominator, and the result is
// rounded to one decimal inside the expression itself: precision is a
// property of the formula text, so users pick their own policy by editing
// it. The scores/coefs arrays mirror the named variables in slot order.
const DefaultFormula = `let n = sum(map(filter(0..7, scores[#] > 0), scores[#] * coefs[#])); ` +
	`let d = sum(map(filter(0..7, scores[#] > 0), coefs[#])); ` +
	`d == 0 ? 0.0 : round(n / d * 10) / 10.0`

// ErrBlankFormula flags a blank formula text. This is a configuration bug
// to fix before running, not missing data to default around.
var ErrBlankFormula = errors.New("score formula is blank")

// Params holds the weighting configuration, read by every scoring call and
// immutable during a batch.
type Params struct {
	// Coefficients is keyed by coefficient variable name; missing entries
	// default to 1.
	Coefficients map[string]float64 `mapstructure:"coefficients"`
	Formula      string             `mapstructure:"formula"`
}

// EffectiveFormula returns the configured formula text, falling back to the
// default when unset.
func (p Params) EffectiveFormula() string {
	if strings.TrimSpace(p.Formula) == "" {
		return DefaultFormula
	}
	return p.Formula
}

// ComputeTotalScore evaluates the formula against the scores and
// coefficients. All sixteen variables are bound on every call: a missing or
// non-finite score counts as 0, a missing or non-finite coefficient as 1,
// so sparse input never fails. A non-numeric or non-finite result is
// coerced to 0 rather than propagated, keeping NaN/Infinity out of the
// pipeline.
func ComputeTotalScore(scores, coefs map[string]float64, formula string) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, ErrBlankFormula
	}

	env := make(map[string]any, len(ScoreNames)+len(CoefNames)+2)
	scoreSlots := make([]float64, len(ScoreNames))
	coefSlots := make([]float64, len(CoefNames))
	for i, name := range ScoreNames {
		scoreSlots[i] = finiteOr(scores[name], 0)
		env[name] = scoreSlots[i]
	}
	for i, name := range CoefNames {
		v, ok := coefs[name]
		if !ok {
			v = 1
		}
		coefSlots[i] = finiteOr(v, 1)
		env[name] = coefSlots[i]
	}
	env["scores"] = scoreSlots
	env["coefs"] = coefSlots

	program, err := expr.Compile(formula)
	if err != nil {
		return 0, fmt.Errorf("compile score formula: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("evaluate score formula: %w", err)
	}

	return asFinite(out), nil
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func asFinite(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	default:
		return 0
	}
	return finiteOr(f, 0)
}
