package env

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{"simple", "API_KEY=secret123", map[string]string{"API_KEY": "secret123"}},
		{"multiple", "A=1\nB=2", map[string]string{"A": "1", "B": "2"}},
		{"double quoted", `API_KEY="secret with spaces"`, map[string]string{"API_KEY": "secret with spaces"}},
		{"single quoted", `API_KEY='secret with spaces'`, map[string]string{"API_KEY": "secret with spaces"}},
		{"escapes in double quotes", `MSG="line1\nline2 \"q\""`, map[string]string{"MSG": "line1\nline2 \"q\""}},
		{"single quotes are literal", `MSG='a\nb'`, map[string]string{"MSG": `a\nb`}},
		{"comments and blanks", "# comment\n\nA=1\n  # indented", map[string]string{"A": "1"}},
		{"trailing comment", "A=1 # note", map[string]string{"A": "1"}},
		{"hash inside quotes", `A="x # y"`, map[string]string{"A": "x # y"}},
		{"hash without space", "COLOR=#fff", map[string]string{"COLOR": "#fff"}},
		{"export prefix", "export TOKEN=abc", map[string]string{"TOKEN": "abc"}},
		{"equals in value", "URL=http://x?a=b", map[string]string{"URL": "http://x?a=b"}},
		{"spaces around equals", "A = 1", map[string]string{"A": "1"}},
		{"no equals is skipped", "JUSTTEXT\nA=1", map[string]string{"A": "1"}},
		{"empty key is skipped", "=value\nA=1", map[string]string{"A": "1"}},
		{"empty value", "A=", map[string]string{"A": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := Parse(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vars)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAndExportDotEnv(t *testing.T) {
	t.Setenv("HAMMX_ENV_SET", "from-shell")
	t.Setenv("HAMMX_ENV_NEW", "")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HAMMX_ENV_SET=from-file\nHAMMX_ENV_NEW=exported\n"), 0o644))

	vars, err := LoadAndExportDotEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", vars["HAMMX_ENV_SET"])
	assert.Equal(t, "from-shell", os.Getenv("HAMMX_ENV_SET"))
	assert.Equal(t, "exported", os.Getenv("HAMMX_ENV_NEW"))
}

func TestLoadDefault(t *testing.T) {
	t.Setenv("HAMMX_DEFAULT_A", "")
	t.Setenv("HAMMX_DEFAULT_B", "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HAMMX_DEFAULT_A=base\nHAMMX_DEFAULT_B=base\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("HAMMX_DEFAULT_B=local\n"), 0o644))

	vars, err := LoadDefault(dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"HAMMX_DEFAULT_A": "base", "HAMMX_DEFAULT_B": "local"}, vars)
	assert.Equal(t, "local", os.Getenv("HAMMX_DEFAULT_B"))

	empty, err := LoadDefault(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
