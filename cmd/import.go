package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobveille/internal/logger"
	"jobveille/internal/offer"
	"jobveille/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <source> <email-file>",
	Short: "Create offers from a saved alert email",
	Long: "import reads the HTML body of a job-alert email saved to disk, extracts the " +
		"offer links for the named source and records one offer per link in status À compléter. " +
		"Already known offers are left untouched.",
	Args: cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ctx := context.Background()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		if err := importEmail(ctx, config, logger, args[0], args[1]); err != nil {
			logger.Fatal("import failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importEmail(ctx context.Context, config *Config, logger *zap.Logger, sourceName, path string) error {
	registry, err := buildRegistry(config, logger)
	if err != nil {
		return fmt.Errorf("building the source registry: %w", err)
	}

	src, _, ok := registry.ByName(sourceName)
	if !ok {
		return fmt.Errorf("unknown source: %s", sourceName)
	}
	if !src.Creation {
		return fmt.Errorf("source %s has creation disabled", src.Slug)
	}

	creator, ok := registry.EmailCreatorFor(sourceName)
	if !ok {
		return fmt.Errorf("source %s has no email adapter", src.Slug)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading email file: %w", err)
	}

	stubs, err := creator.ExtractOffers(string(body))
	if err != nil {
		return fmt.Errorf("extracting offers: %w", err)
	}

	if len(stubs) == 0 {
		logger.Info("exiting", zap.String("reason", "no offer links in email"))
		return nil
	}

	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	created, known := 0, 0
	for _, stub := range stubs {
		// The upsert carries identity columns only: a re-imported offer
		// keeps its status and every column the pipeline already filled.
		identity := store.Patch{offer.ColURL: stub.URL}
		if stub.OfferID != "" {
			identity[offer.ColOfferID] = stub.OfferID
		}

		o, err := st.Upsert(ctx, identity)
		if err != nil {
			return fmt.Errorf("recording offer %s: %w", stub.URL, err)
		}

		if o.Status != "" {
			known++
			continue
		}

		patch := store.Patch{
			offer.ColStatus:     string(offer.StatusToComplete),
			offer.ColSource:     src.Slug,
			offer.ColCreatedVia: offer.CreatedViaEmail,
		}
		if stub.Title != "" {
			patch[offer.ColTitle] = stub.Title
		}

		if err := st.UpdateByID(ctx, o.ID, patch); err != nil {
			return fmt.Errorf("recording offer %s: %w", stub.URL, err)
		}

		created++
		logger.Info("offer recorded",
			zap.String("offer", o.Identity()),
			zap.String("status", string(offer.StatusToComplete)),
		)
	}

	logger.Info("import done", zap.Int("created", created), zap.Int("already_known", known))
	return nil
}
