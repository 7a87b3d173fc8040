package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDirectPairKey(t *testing.T) {
	t.Run("should be symmetric", func(t *testing.T) {
		req := require.New(t)
		a := uuid.Must(uuid.NewV7())
		b := uuid.Must(uuid.NewV7())

		req.Equal(DirectPairKey(a, b), DirectPairKey(b, a))
	})

	t.Run("should order the lower id first", func(t *testing.T) {
		req := require.New(t)
		a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
		b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

		req.Equal(a.String()+":"+b.String(), DirectPairKey(a, b))
		req.Equal(a.String()+":"+b.String(), DirectPairKey(b, a))
	})

	t.Run("should differ for distinct pairs", func(t *testing.T) {
		req := require.New(t)
		a := uuid.Must(uuid.NewV7())
		b := uuid.Must(uuid.NewV7())
		c := uuid.Must(uuid.NewV7())

		req.NotEqual(DirectPairKey(a, b), DirectPairKey(a, c))
	})
}
