package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveUsername(t *testing.T) {
	t.Run("should prefer a sanitized hint", func(t *testing.T) {
		require.Equal(t, "zoe.smith", DeriveUsername("  Zoe.Smith ", "other@example.com"))
	})

	t.Run("should fall back to the email local part", func(t *testing.T) {
		require.Equal(t, "alice", DeriveUsername("", "alice@example.com"))
	})

	t.Run("should strip disallowed characters", func(t *testing.T) {
		require.Equal(t, "bobjones", DeriveUsername("Bob Jones!", ""))
	})

	t.Run("should fall back to a generic name when nothing usable remains", func(t *testing.T) {
		require.Equal(t, "user", DeriveUsername("!!!", "@"))
	})

	t.Run("should cap the length", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		require.Len(t, DeriveUsername(long, ""), maxUsernameLength)
	})
}
