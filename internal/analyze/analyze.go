// Package analyze drives the AI scoring stage: it pulls offers waiting for
// analysis, asks the generator for a structured assessment and writes back
// scores, summary and verdict.
package analyze

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"jobveille/internal/aijson"
	"jobveille/internal/logger"
	"jobveille/internal/offer"
	"jobveille/internal/scoring"
	"jobveille/internal/store"
)

const defaultMaxLogLength = 200

// Generator produces raw model text for a system instruction and a message.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// OfferStore is the slice of the store the driver needs.
type OfferStore interface {
	GetByStatus(ctx context.Context, status offer.Status) ([]*offer.Offer, error)
	UpdateByID(ctx context.Context, id string, patch store.Patch) error
}

// Result summarizes one analysis batch.
type Result struct {
	Analyzed int
	Failed   int
	Messages []string
}

// Driver runs an analysis batch over every offer in status À analyser.
type Driver struct {
	store     OfferStore
	generator Generator
	criteria  aijson.CriteriaConfig
	params    scoring.Params
	logger    *zap.Logger
	maxLogLen int
}

func New(st OfferStore, gen Generator, criteria aijson.CriteriaConfig, params scoring.Params, log *zap.Logger) *Driver {
	return &Driver{
		store:     st,
		generator: gen,
		criteria:  criteria,
		params:    params,
		logger:    log,
		maxLogLen: defaultMaxLogLength,
	}
}

// Run processes the pending offers sequentially, in store order. A bad or
// non-conformant AI response never stops the batch: the diagnostic lands in
// the offer's Résumé_IA and its status stays untouched so the next batch
// retries it. Cancellation is honored between offers.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	offers, err := d.store.GetByStatus(ctx, offer.StatusToAnalyze)
	if err != nil {
		return nil, fmt.Errorf("load offers to analyze: %w", err)
	}

	res := &Result{}
	for i, o := range offers {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		d.logger.Info("analyzing offer",
			zap.String("offer", o.Identity()),
			zap.Int("index", i+1),
			zap.Int("total", len(offers)),
		)

		d.analyzeOne(ctx, o, res)
	}

	return res, nil
}

func (d *Driver) analyzeOne(ctx context.Context, o *offer.Offer, res *Result) {
	message := buildMessage(o, d.criteria)

	d.logger.Debug("ai request",
		zap.String("offer", o.Identity()),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", logger.TruncateForLog(message, d.maxLogLen)),
	)

	raw, err := d.generator.GenerateContent(ctx, systemInstruction, message)
	if err != nil {
		d.fail(res, o, fmt.Sprintf("appel IA en échec : %v", err))
		return
	}

	d.logger.Debug("ai response",
		zap.String("offer", o.Identity()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, d.maxLogLen)),
	)

	obj, err := aijson.ParseObject(raw)
	if err != nil {
		d.reject(ctx, o, res, fmt.Sprintf("Réponse IA inexploitable : %v", err))
		return
	}

	if violations := aijson.Conformance(obj, d.criteria); len(violations) > 0 {
		d.reject(ctx, o, res, "Réponse IA non conforme : "+strings.Join(violations, " ; "))
		return
	}

	patch, err := d.buildPatch(obj)
	if err != nil {
		d.fail(res, o, fmt.Sprintf("calcul du score impossible : %v", err))
		return
	}

	if err := d.store.UpdateByID(ctx, o.ID, patch); err != nil {
		d.fail(res, o, fmt.Sprintf("écriture en échec : %v", err))
		return
	}

	res.Analyzed++
}

// buildPatch maps a conformant AI object onto store columns and computes
// the total score. Analysis completion is marked by status À traiter.
func (d *Driver) buildPatch(obj map[string]any) (store.Patch, error) {
	patch := store.Patch{}
	scores := make(map[string]float64, len(scoring.ScoreNames))

	for _, name := range scoring.ScoreNames {
		v, ok := obj[name]
		if !ok {
			continue
		}
		n, ok := v.(float64)
		if !ok {
			continue
		}
		patch[name] = int(n)
		scores[name] = n
	}

	var text struct {
		Summary string `mapstructure:"Résumé_IA"`
		Verdict string `mapstructure:"Verdict"`
	}
	if err := mapstructure.Decode(obj, &text); err != nil {
		return nil, fmt.Errorf("map ai response fields: %w", err)
	}
	patch[offer.ColSummary] = text.Summary
	patch[offer.ColVerdict] = text.Verdict

	total, err := scoring.ComputeTotalScore(scores, d.params.Coefficients, d.params.EffectiveFormula())
	if err != nil {
		return nil, err
	}
	patch[offer.ColScoreTotal] = total
	patch[offer.ColStatus] = string(offer.StatusToProcess)

	return patch, nil
}

// reject records the diagnostic on the offer itself and leaves its status
// alone.
func (d *Driver) reject(ctx context.Context, o *offer.Offer, res *Result, diagnostic string) {
	if err := d.store.UpdateByID(ctx, o.ID, store.Patch{offer.ColSummary: diagnostic}); err != nil {
		d.logger.Warn("failed to record ai diagnostic",
			zap.String("offer", o.Identity()),
			zap.Error(err),
		)
	}

	d.fail(res, o, diagnostic)
}

func (d *Driver) fail(res *Result, o *offer.Offer, cause string) {
	res.Failed++
	res.Messages = append(res.Messages, fmt.Sprintf("offre %s : %s", o.Identity(), cause))
	d.logger.Warn("offer analysis failed",
		zap.String("offer", o.Identity()),
		zap.String("cause", cause),
	)
}
