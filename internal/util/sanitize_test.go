package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	t.Run("sanitizes invalid characters", func(t *testing.T) {
		actual, err := SanitizeFilename(` q3<report>?.pdf `, false)
		require.NoError(t, err)
		require.Equal(t, "q3_report__.pdf", actual)
	})

	t.Run("rejects empty filenames", func(t *testing.T) {
		_, err := SanitizeFilename("   ", false)
		require.Error(t, err)
	})

	t.Run("rejects hidden filenames when disabled", func(t *testing.T) {
		_, err := SanitizeFilename(".bashrc", false)
		require.Error(t, err)
	})

	t.Run("allows hidden filenames when enabled", func(t *testing.T) {
		actual, err := SanitizeFilename(".bashrc", true)
		require.NoError(t, err)
		require.Equal(t, ".bashrc", actual)
	})

	t.Run("rejects windows reserved names", func(t *testing.T) {
		for _, name := range []string{"CON.txt", "nul", "LPT1.log"} {
			_, err := SanitizeFilename(name, false)
			require.Error(t, err, name)
		}
	})

	t.Run("rejects dot and dotdot", func(t *testing.T) {
		_, err := SanitizeFilename("..", true)
		require.Error(t, err)
	})

	t.Run("truncates long filenames by runes", func(t *testing.T) {
		input := strings.Repeat("é", 260) + ".txt"

		actual, err := SanitizeFilename(input, false)
		require.NoError(t, err)
		require.LessOrEqual(t, len([]rune(actual)), 255)
		require.True(t, utf8.ValidString(actual))
	})

	t.Run("strips invisible unicode characters", func(t *testing.T) {
		input := "holiday\u200B\u200C\u200D\u2060\uFEFF photos.zip"
		actual, err := SanitizeFilename(input, false)
		require.NoError(t, err)
		require.Equal(t, "holiday photos.zip", actual)
	})

	t.Run("rejects names that vanish after stripping", func(t *testing.T) {
		_, err := SanitizeFilename("\u200B\u200C\u200D", false)
		require.Error(t, err)
	})
}
