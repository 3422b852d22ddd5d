package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobveille/internal/enrich"
	"jobveille/internal/logger"
	"jobveille/internal/offer"
	"jobveille/internal/source"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an enrichment batch over offers waiting for completion",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before enriching found offers")
}

// run is the enrichment command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting jobveille", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := enrichBatch(ctx, config, logger); err != nil {
		logger.Fatal("enrichment batch failed", zap.Error(err))
	}
}

// enrichBatch loads the candidates, runs them through the enrichment runner
// and logs the outcome. Shared by the run and cron commands.
func enrichBatch(ctx context.Context, config *Config, logger *zap.Logger) error {
	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := buildRegistry(config, logger)
	if err != nil {
		return fmt.Errorf("building the source registry: %w", err)
	}

	pending, err := st.GetByStatus(ctx, offer.StatusToComplete)
	if err != nil {
		return fmt.Errorf("loading offers to enrich: %w", err)
	}

	candidates := eligible(pending, registry)

	logger.Info("offers waiting for enrichment",
		zap.Int("pending", len(pending)),
		zap.Int("eligible", len(candidates)),
	)

	if len(candidates) == 0 {
		logger.Info("exiting", zap.String("reason", "no eligible offers"))
		return nil
	}

	events := make(chan enrich.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range events {
			logEvent(logger, e)
		}
	}()

	res := enrich.New(st, registry, logger, events).Run(ctx, candidates)

	close(events)
	<-done

	for _, msg := range res.Messages {
		logger.Warn(msg)
	}

	logger.Info("enrichment batch done",
		zap.Int("enriched", res.Enriched),
		zap.Int("failed", res.Failed),
	)

	return nil
}

// eligible keeps the offers whose source has enrichment enabled and an
// available fetch adapter.
func eligible(offers []*offer.Offer, registry *source.Registry) []*offer.Offer {
	var out []*offer.Offer
	for _, o := range offers {
		src, ok := registry.SourceForURL(o.URL)
		if !ok || !src.Enrichment {
			continue
		}
		if _, ok := registry.FetcherFor(o.URL); !ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

func logEvent(log *zap.Logger, e enrich.Event) {
	switch e.Kind {
	case enrich.EventProgress:
		log.Info("enriching offer",
			zap.String("offer", e.Offer.Identity()),
			zap.Int("index", e.Index+1),
			zap.Int("total", e.Total),
			zap.String("url", logger.TruncateForLog(e.Offer.URL, 120)),
		)
	case enrich.EventTransition:
		log.Info("offer status transition",
			zap.String("offer", e.Offer.Identity()),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
		)
	}
}
