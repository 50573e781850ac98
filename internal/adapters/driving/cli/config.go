package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-ask/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default config file",
	Long:        `Write the default configuration to --config, or ~/.sercha-ask/config.toml. An existing file is never overwritten.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file location",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigPath,
}

var configCheckCmd = &cobra.Command{
	Use:         "check",
	Short:       "Load the config and ping AI providers",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runConfigCheck,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return file.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err := file.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := file.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := newPrinter(out)
	fmt.Fprintf(out, "Config:     %s\n", path)
	fmt.Fprintf(out, "Data dir:   %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(out, "Embedding:  %s\n", orNone(string(cfg.Embedding.Provider)))
	fmt.Fprintf(out, "LLM:        %s\n", orNone(string(cfg.LLM.Provider)))

	if err := ai.ValidateProviders(commandContext(cmd), &cfg); err != nil {
		fmt.Fprintln(out, p.style(errStyle, "Providers:  unreachable"))
		return err
	}
	fmt.Fprintln(out, p.style(okStyle, "Providers:  ok"))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
