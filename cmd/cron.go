package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobveille/internal/logger"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run enrichment and analysis batches on the configured schedules",
	Run: func(_ *cobra.Command, _ []string) {
		runCron()
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
}

func runCron() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config.Cron == nil || (config.Cron.Enrich == "" && config.Cron.Analyze == "") {
		logger.Fatal("cron requires at least one schedule under cron.enrich or cron.analyze")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()

	if spec := config.Cron.Enrich; spec != "" {
		if _, err := scheduler.AddFunc(spec, func() {
			if err := enrichBatch(ctx, config, logger); err != nil {
				logger.Error("scheduled enrichment failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("invalid cron.enrich schedule", zap.String("spec", spec), zap.Error(err))
		}
		logger.Info("scheduled enrichment", zap.String("spec", spec))
	}

	if spec := config.Cron.Analyze; spec != "" {
		if _, err := scheduler.AddFunc(spec, func() {
			if err := analyzeBatch(ctx, config, logger); err != nil {
				logger.Error("scheduled analysis failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("invalid cron.analyze schedule", zap.String("spec", spec), zap.Error(err))
		}
		logger.Info("scheduled analysis", zap.String("spec", spec))
	}

	scheduler.Start()
	logger.Info("cron started", zap.String("version", version))

	<-ctx.Done()
	logger.Info("shutting down, waiting for running batches")
	<-scheduler.Stop().Done()
}
