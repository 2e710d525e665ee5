package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string cut", "hello world", 5, "hello..."},
		{"multibyte runes", "àéîõü", 2, "àé..."},
		{"zero max", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", PreviewLength+50)
	got := Preview(long)
	assert.Equal(t, PreviewLength+3, len(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestLoadEnv_MissingFile(t *testing.T) {
	loaded, err := LoadEnv(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadEnv_KeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CORPANALYST_TEST_A=from-file\nCORPANALYST_TEST_B=\"quoted\"\n"), 0o644))

	t.Setenv("CORPANALYST_TEST_A", "from-env")
	t.Setenv("CORPANALYST_TEST_B", "")
	os.Unsetenv("CORPANALYST_TEST_B")

	loaded, err := LoadEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-env", os.Getenv("CORPANALYST_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("CORPANALYST_TEST_B"))
}

func TestNewLoggerWithOutput_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("info", &buf).Named("test")

	logger.Debug().Msg("hidden")
	logger.Info().Str("path", "/health").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"service":"test"`)
	assert.Contains(t, out, `"path":"/health"`)
}
