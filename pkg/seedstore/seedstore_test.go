package seedstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "seeds.db"))
	require.NoError(t, err)
	defer s.Close()

	matrix := CostMatrix{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}}
	require.NoError(t, s.Put(7, matrix))

	got, ok, err := s.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, matrix, got)
}

func TestGetMissingSeed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "seeds.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasDistinguishesUsedSeeds(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "seeds.db"))
	require.NoError(t, err)
	defer s.Close()

	used, err := s.Has(3)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, s.Put(3, CostMatrix{{0}}))
	used, err = s.Has(3)
	require.NoError(t, err)
	assert.True(t, used)
}
