package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Flags shared by every command.
var (
	configFlag   string
	profileFlag  string
	envFileFlag  string
	timeoutFlag  string
	proxyFlag    string
	insecureFlag bool
	verboseFlag  bool
	noColorFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "hammx [METHOD] URL",
	Short: "Chainable REST requests from the command line",
	Long: `hammx sends REST requests built from a base URL and path segments,
and prints the response with its status, headers and pretty printed JSON.

Examples:
  hammx GET https://api.example.com --path users/42
  hammx POST https://api.example.com -p users -d '{"name":"ada"}'
  hammx https://api.example.com/users -q page=2 -H Accept=application/json
  hammx GET https://api.example.com/users --select 'data.#.id' --raw
  hammx -i https://api.example.com`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(2)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              requestCommand,
}

// Execute runs the CLI and returns the process exit code.
func Execute(v, bt string) int {
	version = v
	buildTime = bt

	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Quiet {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", getEnvString("HAMMX_CONFIG", ""), "Path to config file (env: HAMMX_CONFIG)")
	pf.StringVar(&profileFlag, "profile", getEnvString("HAMMX_PROFILE", ""), "Config profile to apply (env: HAMMX_PROFILE)")
	pf.StringVar(&envFileFlag, "env-file", getEnvString("HAMMX_ENV_FILE", ""), "Path to .env file, default .env and .env.local (env: HAMMX_ENV_FILE)")
	pf.StringVar(&timeoutFlag, "timeout", getEnvString("HAMMX_TIMEOUT", ""), "Request timeout, e.g. 10s (env: HAMMX_TIMEOUT)")
	pf.StringVar(&proxyFlag, "proxy", getEnvString("HAMMX_PROXY", ""), "Proxy URL for HTTP requests (env: HAMMX_PROXY)")
	pf.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HAMMX_INSECURE", false), "Disable SSL certificate validation (env: HAMMX_INSECURE)")
	pf.BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("HAMMX_VERBOSE", false), "Log requests and retries to stderr (env: HAMMX_VERBOSE)")
	pf.BoolVar(&noColorFlag, "no-color", getEnvBool("HAMMX_NO_COLOR", false), "Disable colored output (env: HAMMX_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging sends zerolog output to stderr. Only warnings show unless
// --verbose is set.
func setupLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.WarnLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColorFlag})
	return nil
}
