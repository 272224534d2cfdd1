// Package config handles configuration loading and management for hammx.
//
// It provides functionality for:
//   - Loading configuration from .hammx.json, .hammx.yaml or .hammxrc files
//   - Expanding ${VAR} references from the environment
//   - Named profiles layered over the base settings
//   - Watching a config file for changes
package config
