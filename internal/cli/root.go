package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/shepard/internal/logging"
	"github.com/ppiankov/shepard/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SHEPARD"

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shepard",
	Short: "Shepard - negative treatment detection for court opinions",
	Long: `Shepard reads a court opinion and reports the earlier cases it treats
negatively: overruled, limited, distinguished, criticized or otherwise
undermined.

Classification is delegated to a language model oracle (OpenAI, Anthropic
or a local Ollama server), either once for the whole opinion or once per
citation occurrence.

Shepard reports what the oracle finds. It is not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "shepard %s\n", Version)
	},
}

// flagKeys binds persistent flags to configuration keys
var flagKeys = map[string]string{
	"mode":       "mode",
	"provider":   "llm.provider",
	"model":      "llm.model",
	"source-dir": "source.dir",
	"source-url": "source.base_url",
	"radius":     "window.radius",
	"workers":    "concurrency.workers",
	"output-dir": "output.dir",
	"md":         "output.markdown",
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := model.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.shepard/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	flags.String("mode", defaults.Mode, "analysis mode (document, citation)")
	flags.String("provider", defaults.LLM.Provider, "LLM provider (openai, anthropic, ollama)")
	flags.String("model", "", "LLM model name (default: provider default)")
	flags.String("source-dir", defaults.Source.Dir, "directory holding <slug>.html opinions")
	flags.String("source-url", "", "base URL serving <slug>.html opinions (overrides --source-dir)")
	flags.Int("radius", defaults.Window.Radius, "context window radius in citation mode")
	flags.Int("workers", defaults.Concurrency.Workers, "concurrent oracle calls in citation mode")
	flags.String("output-dir", defaults.Output.Dir, "directory for result files")
	flags.Bool("md", false, "also write a Markdown report")
	flags.String("log-level", defaults.Logging.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Logging.Format, "log format (console, json)")

	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	for flag, key := range flagKeys {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".shepard"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureEnv maps nested keys onto SHEPARD_* variables, e.g. llm.provider
// resolves from SHEPARD_LLM_PROVIDER
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a marshaled default
	for _, key := range []string{"llm.api_key", "llm.base_url", "source.http_proxy", "source.https_proxy", "source.no_proxy"} {
		_ = v.BindEnv(key)
	}
}

// registerDefaults makes every configuration key known to viper so that
// environment variables are honoured by Unmarshal
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	for key, value := range flatten("", tree) {
		v.SetDefault(key, value)
	}
	return nil
}

func flatten(prefix string, tree map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// loadConfig resolves the effective configuration: flags over SHEPARD_* env
// over config file over defaults. Provider credentials come from the
// provider's own environment variables.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	if err := registerDefaults(v); err != nil {
		return nil, err
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyProviderEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyProviderEnv fills provider credentials and endpoints from the environment
func applyProviderEnv(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
}

// requireAPIKey reports a missing credential by the variable users are expected to set
func requireAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	case "anthropic", "claude":
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	return nil
}

// newLogger builds the run logger from the logging section
func newLogger(cfg *model.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// sortedKeys returns map keys in stable order for display
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
