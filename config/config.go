// Package config aggregates every flag the CLI or an embedder can set
// before a reactor run starts (spec §3 "[FULL] Configuration"), optionally
// sourced from a YAML file via gopkg.in/yaml.v3 — already part of the
// teacher's dependency graph — with explicit CLI flags overriding it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rvjit/rvjit/mem"
)

// Config is the full set of reactor/CLI flags, in their YAML-decodable
// form. Paging is stored as a string here (legacy/shared/both) and
// resolved to mem.PagingMode by the PagingMode method, since yaml.v3 has no
// notion of the mem package's enum.
type Config struct {
	JIT      bool   `yaml:"jit"`
	TestMode bool   `yaml:"test_mode"`
	Paging   string `yaml:"paging"`

	SharedPageTableVaddr         uint64 `yaml:"shared_page_table_vaddr"`
	SharedSecurityDirectoryVaddr uint64 `yaml:"shared_security_directory_vaddr"`
	Use32BitPaging               bool   `yaml:"use_32bit_paging"`
	UseMultilevelPaging          bool   `yaml:"use_multilevel_paging"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Stats     bool   `yaml:"stats"`
	TUI       bool   `yaml:"tui"`
}

// Default returns the documented flag defaults (spec §6): JIT on, legacy
// paging, info-level text logging.
func Default() Config {
	return Config{
		JIT:       true,
		Paging:    "legacy",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads and parses a YAML config file on top of Default(), per field
// present in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// PagingMode resolves the textual Paging field to mem.PagingMode.
func (c Config) PagingMode() (mem.PagingMode, error) {
	switch c.Paging {
	case "", "legacy":
		return mem.Legacy, nil
	case "shared":
		return mem.Shared, nil
	case "both":
		return mem.Both, nil
	default:
		return 0, fmt.Errorf("config: unknown paging mode %q", c.Paging)
	}
}

// Validate applies spec §6's flag-interaction rule: Shared/Both paging
// requires both base addresses to be set.
func (c Config) Validate() error {
	mode, err := c.PagingMode()
	if err != nil {
		return err
	}
	if mode == mem.Legacy {
		return nil
	}
	if c.SharedPageTableVaddr == 0 || c.SharedSecurityDirectoryVaddr == 0 {
		return fmt.Errorf("config: paging mode %q requires both shared_page_table_vaddr and shared_security_directory_vaddr", c.Paging)
	}
	return nil
}
