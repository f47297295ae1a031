package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArchiveFile is the archive database name inside the data directory.
const ArchiveFile = "archive.db"

// DefaultPath returns the archive location inside dataDir, or inside
// ~/.alliance when dataDir is empty.
func DefaultPath(dataDir string) (string, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".alliance")
	}
	return filepath.Join(dataDir, ArchiveFile), nil
}
