package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the recognized configuration keys of spec.md §6.4, loaded
// from <repo>/.ctx/config.toml the way configfile.go's Config loads
// beads' metadata.json: one struct, one file, defaults filled in before
// the file is read so a partial file only overrides what it names.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Index     IndexConfig     `toml:"index"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Retrieval RetrievalDefaults `toml:"retrieval"`
	Session   SessionConfig   `toml:"session"`
}

type StorageConfig struct {
	CompressionLevel int `toml:"compression_level"`
	ShardPrefixBytes int `toml:"shard_prefix_bytes"`
}

type IndexConfig struct {
	Backend string `toml:"backend"`
}

type IngestionConfig struct {
	IgnoreGlobs      []string `toml:"ignore_globs"`
	MaxFilesPerStep  int      `toml:"max_files_per_step"`
	MaxBytesPerStep  int      `toml:"max_bytes_per_step"`
	MaxEdgesPerStep  int      `toml:"max_edges_per_step"`
}

type RetrievalDefaults struct {
	DefaultBudget    int  `toml:"default_budget"`
	DefaultDepth     int  `toml:"default_depth"`
	IncludeNarrative bool `toml:"include_narrative"`
}

type SessionConfig struct {
	AskThresholdHours         int `toml:"ask_threshold_hours"`
	AutoCompactThresholdHours int `toml:"auto_compact_threshold_hours"`
}

// DefaultConfig mirrors the defaults named throughout spec.md §4: zstd
// default compression, a one-byte shard prefix, bbolt as the only index
// backend implemented, the §4.5/§4.7 step budgets and retrieval knobs.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{CompressionLevel: 3, ShardPrefixBytes: 1},
		Index:   IndexConfig{Backend: "bbolt"},
		Ingestion: IngestionConfig{
			MaxFilesPerStep: 200,
			MaxBytesPerStep: 20 * 1024 * 1024,
			MaxEdgesPerStep: 500,
		},
		Retrieval: RetrievalDefaults{DefaultBudget: 8000, DefaultDepth: 2, IncludeNarrative: true},
		Session:   SessionConfig{AskThresholdHours: 24, AutoCompactThresholdHours: 24 * 7},
	}
}

const configFileName = "config.toml"

func configPath(ctxDir string) string { return filepath.Join(ctxDir, configFileName) }

// LoadConfig reads <ctxDir>/config.toml over top of DefaultConfig, so a
// file that sets only one key leaves every other default untouched.
func LoadConfig(ctxDir string) (Config, error) {
	cfg := DefaultConfig()
	path := configPath(ctxDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("repo: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to <ctxDir>/config.toml.
func SaveConfig(ctxDir string, cfg Config) error {
	path := configPath(ctxDir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("repo: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("repo: encode %s: %w", path, err)
	}
	return nil
}
