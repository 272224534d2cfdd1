// Package cmd implements the hammx CLI commands using Cobra.
//
// Available commands:
//   - hammx METHOD URL: send one request and print the response
//   - shell: interactive session that builds requests step by step
//   - bench: send a request repeatedly and report latency percentiles
//   - version: show hammx version information
//   - completion: generate shell completion scripts
//
// Flags fall back to HAMMX_* environment variables, then to the config
// file found in the working directory.
package cmd
