package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 8\nheight: 8\nmode: different\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
	assert.Equal(t, ModeDifferent, cfg.Mode)
	assert.Equal(t, 2, cfg.Vehicle.Count) // untouched default
}

func TestValidateRejectsStoresWithoutWarehouses(t *testing.T) {
	cfg := Default()
	cfg.Warehouse.Count = 0
	cfg.Store.Count = 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOvercrowdedGrid(t *testing.T) {
	cfg := Default()
	cfg.Width, cfg.Height = 1, 1
	cfg.Warehouse.Count = 1
	cfg.Supplier.Count = 1
	cfg.Store.Count = 1
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
