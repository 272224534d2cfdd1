package env

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFiles are loaded by LoadDefault, later files overriding earlier ones.
var DefaultFiles = []string{".env", ".env.local"}

// LoadDotEnv parses a .env file and returns key-value pairs.
// Supports: KEY=value, export KEY=value, KEY="quoted value" (with \n, \t and
// \" escapes), KEY='literal value', # comments and trailing " # comments"
// after unquoted values.
// This does NOT export to the OS environment; see LoadAndExportDotEnv.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	vars, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vars, nil
}

// Parse reads .env formatted content.
func Parse(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = parseValue(strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseValue(v string) string {
	if len(v) >= 2 {
		switch q := v[0]; q {
		case '"':
			if end := strings.LastIndexByte(v, '"'); end > 0 {
				return unescape(v[1:end])
			}
		case '\'':
			if end := strings.LastIndexByte(v, '\''); end > 0 {
				return v[1:end]
			}
		}
	}

	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

func unescape(s string) string {
	return escapes.Replace(s)
}

// LoadAndExportDotEnv parses a .env file, returns key-value pairs,
// and exports them to the OS environment for ${VAR} resolution.
// Variables are only exported if not already set in the OS environment.
func LoadAndExportDotEnv(path string) (map[string]string, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	Export(vars)
	return vars, nil
}

// Export sets every variable that is unset or empty in the environment.
func Export(vars map[string]string) {
	for k, v := range vars {
		if os.Getenv(k) == "" {
			_ = os.Setenv(k, v) // only fails for invalid key names
		}
	}
}

// LoadDefault reads DefaultFiles from dir, skipping missing ones, and
// exports the merged result.
func LoadDefault(dir string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, name := range DefaultFiles {
		vars, err := LoadDotEnv(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	Export(merged)
	return merged, nil
}
