package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTail(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kxapi.log")

	var content strings.Builder
	var all []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		all = append(all, line)
	}
	require.NoError(t, os.WriteFile(logPath, []byte(content.String()), 0o644))

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "all (0)", maxLines: 0, expected: all},
		{name: "all (negative)", maxLines: -1, expected: all},
		{name: "partial (5)", maxLines: 5, expected: all[5:]},
		{name: "exactly all (10)", maxLines: 10, expected: all},
		{name: "more than exists (20)", maxLines: 20, expected: all},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tail(logPath, tt.maxLines)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTail_MissingFile(t *testing.T) {
	got, err := Tail(filepath.Join(t.TempDir(), "absent.log"), 10)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenFile_AppendsAndCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kxapi.log")

	for _, line := range []string{"first", "second"} {
		f, err := OpenFile(path)
		require.NoError(t, err)
		log, err := New("info", f)
		require.NoError(t, err)
		log.WithField("token", "abc").Info(line)
		require.NoError(t, f.Close())
	}

	lines, err := Tail(path, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "second")
	assert.NotContains(t, lines[0], "abc")
}
