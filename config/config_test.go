package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvjit/rvjit/mem"
)

func TestDefaultConfigIsLegacyPagingJITOn(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.JIT)
	mode, err := cfg.PagingMode()
	require.NoError(t, err)
	assert.Equal(t, mem.Legacy, mode)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsSharedPagingWithoutBases(t *testing.T) {
	cfg := Default()
	cfg.Paging = "shared"
	assert.Error(t, cfg.Validate())

	cfg.SharedPageTableVaddr = 0x1000
	cfg.SharedSecurityDirectoryVaddr = 0x2000
	assert.NoError(t, cfg.Validate())
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "jit: false\npaging: both\nshared_page_table_vaddr: 4096\nshared_security_directory_vaddr: 8192\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.JIT)
	assert.Equal(t, "debug", cfg.LogLevel)
	mode, err := cfg.PagingMode()
	require.NoError(t, err)
	assert.Equal(t, mem.Both, mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
