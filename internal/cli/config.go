package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/eventscout/internal/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the eventscout configuration",
	Long: `Settings are resolved in this order, later sources winning:

  built-in defaults
  ~/.eventscout/config.yaml (or --config)
  EVENTSCOUT_* environment variables, e.g. EVENTSCOUT_LLM_PROVIDER=ollama
  command-line flags`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source := "built-in defaults"
		if path := viper.ConfigFileUsed(); path != "" {
			source = path
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "# source: %s\n", source)

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, _ = cmd.OutOrStdout().Write(out)

		if cfg.LLM.Provider != "" && cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s no API key found for %s\n", color.YellowString("warning:"), cfg.LLM.Provider)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("locate home directory: %w", err)
			}
			path = filepath.Join(home, ".eventscout", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", color.GreenString("✓"), path)
		return nil
	},
}

const configHeader = `# eventscout configuration
#
# Every key can be overridden with an EVENTSCOUT_ environment variable
# (dots become underscores) or the matching command-line flag.

`

const configFooter = `
# API keys are never stored here. Export them or put them in .env:
#   OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL
`

// writeDefaultConfig writes the default configuration to path. An existing
// file is left untouched.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; remove it first or edit it in place", path)
	}

	body, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	content := append([]byte(configHeader), body...)
	content = append(content, configFooter...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
