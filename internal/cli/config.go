package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/deckcheck/internal/model"
)

// credentialEnv maps provider names to the variables holding their keys
var credentialEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"claude":     "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
}

// setDefaults registers every DefaultConfig key so that env overrides and
// Unmarshal see the full tree
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	walkDefaults(v, "", tree)

	// Keys are yaml:"-" so they never reach a written config file
	v.SetDefault("llm.api_key", "")
	v.SetDefault("search.api_key", "")
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the merged configuration and resolves credentials
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyCredentials(cfg, os.Getenv)
	return cfg, nil
}

// applyCredentials fills API keys and the Ollama endpoint from the
// conventional provider variables when the config leaves them empty
func applyCredentials(cfg *model.Config, getenv func(string) string) {
	if cfg.LLM.APIKey == "" {
		if name, ok := credentialEnv[strings.ToLower(cfg.LLM.Provider)]; ok {
			cfg.LLM.APIKey = getenv(name)
		}
	}
	if cfg.Search.APIKey == "" {
		if name, ok := credentialEnv[strings.ToLower(cfg.Search.Provider)]; ok {
			cfg.Search.APIKey = getenv(name)
		}
	}
	if strings.EqualFold(cfg.LLM.Provider, "ollama") && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
	}
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage deckcheck configuration",
	Long: `Manage deckcheck configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DECKCHECK_*, .env.local, .env)
3. Config file (~/.deckcheck/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, env vars and flags are merged. API keys are reported as set or unset, never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))

		fmt.Printf("# llm api key (%s): %s\n", cfg.LLM.Provider, keyState(cfg.LLM.APIKey))
		fmt.Printf("# search api key (%s): %s\n", cfg.Search.Provider, keyState(cfg.Search.APIKey))
		return nil
	},
}

func keyState(key string) string {
	if key == "" {
		return "unset"
	}
	return "set"
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.deckcheck/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.deckcheck"
		configPath := configDir + "/config.yaml"
		if err := writeDefaultConfig(configDir, configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the effective configuration:\n")
		fmt.Printf("  deckcheck config show\n\n")
		return nil
	},
}

// writeDefaultConfig writes the commented default config, refusing to
// overwrite an existing file
func writeDefaultConfig(dir, path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'deckcheck config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# deckcheck configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
	b.WriteString("#   1. CLI flags\n")
	b.WriteString("#   2. Environment variables (DECKCHECK_*, e.g. DECKCHECK_PIPELINE_VERIFY_DELAY=5s)\n")
	b.WriteString("#   3. This config file\n")
	b.WriteString("#   4. Built-in defaults\n\n")
	b.Write(yamlData)
	b.WriteString("\n# API keys are read from the environment or .env.local, never from this file:\n")
	b.WriteString("#   ANTHROPIC_API_KEY=sk-ant-...\n")
	b.WriteString("#   OPENAI_API_KEY=sk-...\n")
	b.WriteString("#   PERPLEXITY_API_KEY=pplx-...\n")
	b.WriteString("#   OLLAMA_BASE_URL=http://localhost:11434\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
