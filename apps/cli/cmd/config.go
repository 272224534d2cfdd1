package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/abdul-hamid-achik/hammx/packages/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the hammx config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the effective settings to a config file",
	Long: `Write the settings in effect (config file, profile and flags) to PATH,
.hammx.yaml by default. Paths ending in .json are written as JSON.

Examples:
  hammx config init
  hammx config init --timeout 10s --retry 2 hammx.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".hammx.yaml"
		if len(args) > 0 {
			path = args[0]
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return initConfig(cfg, path, configForceFlag, cmd.OutOrStdout())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return showConfig(cfg, cmd.OutOrStdout())
	},
}

var configForceFlag bool

func init() {
	configInitCmd.Flags().BoolVarP(&configForceFlag, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func initConfig(cfg *config.Config, path string, force bool, w io.Writer) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return usageError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
		} else if !errors.Is(err, os.ErrNotExist) {
			return configError(err)
		}
	}
	if err := cfg.SaveConfig(path); err != nil {
		return configError(fmt.Errorf("writing config: %w", err))
	}

	printer := output.NewPrinter(output.WithWriter(w), output.WithNoColor(cfg.GetNoColor()))
	printer.Info("Wrote %s", path)
	if cfg.IsDefault() {
		printer.Info("All settings are defaults; set baseURL, headers and auth to get started.")
	}
	return nil
}

func showConfig(cfg *config.Config, w io.Writer) error {
	printer := output.NewPrinter(output.WithWriter(w), output.WithNoColor(cfg.GetNoColor()))
	if cfg.IsDefault() {
		printer.Info("# no config file or flags set, showing defaults")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
