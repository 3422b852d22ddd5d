package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobveille/internal/ai/gemini"
	"jobveille/internal/aijson"
	"jobveille/internal/fetch"
	ilogger "jobveille/internal/logger"
	"jobveille/internal/scoring"
	"jobveille/internal/secrets"
	"jobveille/internal/source"
	"jobveille/internal/store"
)

const (
	app = "jobveille"
)

type Config struct {
	Store    store.Config          `mapstructure:"store"`
	Sources  []SourceConfig        `mapstructure:"sources"`
	Criteria aijson.CriteriaConfig `mapstructure:"criteria"`
	Scoring  scoring.Params        `mapstructure:"scoring"`
	AI       *AIConfig             `mapstructure:"ai"`
	Cron     *CronConfig           `mapstructure:"cron"`
}

// SourceConfig declares one offer source. The generic adapters are pure
// configuration: a selectors block makes the source fetchable, an email
// block makes it creatable from alert emails.
type SourceConfig struct {
	Source    source.Source     `mapstructure:",squash"`
	Selectors *fetch.Selectors  `mapstructure:"selectors"`
	Email     *fetch.EmailRules `mapstructure:"email"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type CronConfig struct {
	Enrich  string `mapstructure:"enrich"`
	Analyze string `mapstructure:"analyze"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobveille tracks job offers: it enriches them from their detail pages and scores them with an AI service",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobveille.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only the batch commands need a config file.
	if runCmd.CalledAs() == "" && analyzeCmd.CalledAs() == "" && cronCmd.CalledAs() == "" && importCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return config, nil
}

// openStore opens the configured backend.
func openStore(config *Config, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(config.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("opening the offer store: %w", err)
	}
	return st, nil
}

// buildRegistry turns the sources section into a registry with the generic
// adapters wired in.
func buildRegistry(config *Config, logger *zap.Logger) (*source.Registry, error) {
	registry := source.NewRegistry()

	for _, sc := range config.Sources {
		if strings.TrimSpace(sc.Source.Slug) == "" {
			return nil, fmt.Errorf("every source needs a slug")
		}

		var adapters source.Adapters

		if sc.Selectors != nil && strings.TrimSpace(sc.Selectors.FullText) != "" {
			adapters.Fetch = fetch.NewPageFetcher(*sc.Selectors, logger.With(zap.String("source", sc.Source.Slug)))
		}

		if sc.Email != nil && strings.TrimSpace(sc.Email.LinkPattern) != "" {
			extractor, err := fetch.NewLinkExtractor(*sc.Email, logger.With(zap.String("source", sc.Source.Slug)))
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", sc.Source.Slug, err)
			}
			adapters.Email = extractor
		}

		registry.Register(sc.Source, adapters)
	}

	return registry, nil
}

// newGenerator builds the Gemini generator from the ai section.
func newGenerator(ctx context.Context, config *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if config == nil || config.Gemini == nil {
		return nil, fmt.Errorf("ai.gemini configuration is required for analysis")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKeyFile := strings.TrimSpace(config.Gemini.APIKeyFile)
	if apiKeyFile == "" {
		apiKeyFile = strings.TrimSpace(viper.GetString("ai.gemini.api-key-file"))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: apiKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := ilogger.WithAIFields(logger, "gemini", config.Gemini.Model)

	return gemini.New(ctx, gemini.Config{
		APIKey:     apiKey,
		Model:      config.Gemini.Model,
		MaxRetries: config.Gemini.MaxRetries,
	}, genLogger)
}
