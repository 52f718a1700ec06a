package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nixlim/grouptop/internal/config"
)

// memoryCapacity bounds the in-memory fetch log.
const memoryCapacity = 1000

// NewStore opens the SQLite fetch log at cfg.DBPath. An empty path, or a
// database that cannot be opened, yields an in-memory store instead. The bool
// reports whether the store is persistent.
func NewStore(cfg config.StorageConfig) (Store, bool) {
	if cfg.DBPath == "" {
		return NewMemoryStore(memoryCapacity), false
	}

	dbPath := expandTilde(cfg.DBPath)

	store, err := NewSQLiteStore(dbPath, cfg.RetentionDays)
	if err != nil {
		log.Warn("SQLite storage unavailable, falling back to in-memory store", "err", err)
		return NewMemoryStore(memoryCapacity), false
	}

	return store, true
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
