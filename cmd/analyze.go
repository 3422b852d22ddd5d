package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobveille/internal/analyze"
	"jobveille/internal/logger"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score offers waiting for analysis with the AI service",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		if err := analyzeBatch(ctx, config, logger); err != nil {
			logger.Fatal("analysis batch failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeBatch wires the store, the generator and the driver together.
// Shared by the analyze and cron commands.
func analyzeBatch(ctx context.Context, config *Config, logger *zap.Logger) error {
	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		return fmt.Errorf("building the ai generator: %w", err)
	}

	driver := analyze.New(st, generator, config.Criteria, config.Scoring, logger)

	res, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	for _, msg := range res.Messages {
		logger.Warn(msg)
	}

	logger.Info("analysis batch done",
		zap.Int("analyzed", res.Analyzed),
		zap.Int("failed", res.Failed),
	)

	return nil
}
