package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/aipq/internal/config"
	"github.com/zjrosen/aipq/internal/log"
)

// defaultConfigFile is looked up in the working directory first.
const defaultConfigFile = "aipq.yaml"

var (
	version    = "dev"
	cfgFile    string
	verbose    bool
	cfg        config.Config
	configErr  error
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "aipq",
	Short: "AIP-160 filters, AIP-132 list queries and page tokens",
	Long: `aipq parses and validates AIP-160 filters and AIP-132 orderings against a
schema, evaluates them over JSON records, compiles them to SQL and issues
opaque page tokens.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./aipq.yaml, then ~/.config/aipq/config.yaml)")
	rootCmd.PersistentFlags().StringP("schema", "s", "",
		"YAML schema descriptor")
	rootCmd.PersistentFlags().StringP("dialect", "d", "",
		"SQL dialect: postgres, mysql or sqlite")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log debug output to stderr")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("dialect", defaults.Dialect)
	viper.SetDefault("query.max_page_size", defaults.Query.MaxPageSize)
	viper.SetDefault("query.default_page_size", defaults.Query.DefaultPageSize)
	viper.SetDefault("query.primary_ordering_term", defaults.Query.PrimaryOrderingTerm)
	viper.SetDefault("query.max_filter_length", defaults.Query.MaxFilterLength)
	viper.SetDefault("query.max_ordering_length", defaults.Query.MaxOrderingLength)
	viper.SetDefault("query.max_query_length", defaults.Query.MaxQueryLength)
	viper.SetDefault("query.max_depth", defaults.Query.MaxDepth)
	viper.SetDefault("query.page_token_ttl", defaults.Query.PageTokenTTL)
	viper.SetDefault("query.parse_cache_ttl", defaults.Query.ParseCacheTTL)
	viper.SetDefault("query.parse_cache_sliding", defaults.Query.ParseCacheSliding)
	viper.SetDefault("query.case_insensitive_like", defaults.Query.CaseInsensitiveLike)
	viper.SetDefault("page_token.strategy", defaults.PageToken.Strategy)
	viper.SetDefault("page_token.url_safe", defaults.PageToken.URLSafe)
	viper.SetDefault("page_token.key", "")
	viper.SetDefault("page_token.secret", "")
	viper.SetDefault("page_token.key_info", defaults.PageToken.KeyInfo)
	viper.SetDefault("page_token.public_key_file", "")
	viper.SetDefault("page_token.private_key_file", "")
	viper.SetDefault("log.enabled", defaults.Log.Enabled)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.file", "")

	// AIPQ_PAGE_TOKEN_SECRET overrides page_token.secret and so on.
	viper.SetEnvPrefix("AIPQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindPFlag("schema_file", rootCmd.PersistentFlags().Lookup("schema"))
	_ = viper.BindPFlag("dialect", rootCmd.PersistentFlags().Lookup("dialect"))

	configErr = readConfig()
}

func readConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. ./aipq.yaml (current directory)
		// 2. ~/.config/aipq/config.yaml (user config)
		if _, err := os.Stat(defaultConfigFile); err == nil {
			viper.SetConfigFile(defaultConfigFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "aipq"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		// No config file: run on defaults, flags and environment.
	}

	cfg = config.Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

func setup(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := initLogging(cfg.Log); err != nil {
		return err
	}
	log.Debug(log.CatCLI, "Command starting", "command", cmd.CommandPath(), "config", viper.ConfigFileUsed())
	return nil
}

func initLogging(lc config.LogConfig) error {
	switch {
	case verbose:
		log.InitWriter(os.Stderr)
		log.SetMinLevel(log.LevelDebug)
		return nil
	case !lc.Enabled:
		log.Reset()
		return nil
	case lc.File != "":
		cleanup, err := log.Init(lc.File)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logCleanup = cleanup
	default:
		log.InitWriter(os.Stderr)
	}

	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	log.SetMinLevel(level)
	return nil
}

// configPath returns the file that saves should go to.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return defaultConfigFile
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
