package ledgercsv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"kakeibo/internal/core"
)

const backupPrefix = "kakeibo_backup_"

// WriteBackup exports the ledger to a timestamped file in dir and returns
// its path. The timestamp in the name makes concurrent backups distinct
// down to the second; a same-second collision overwrites, which is fine
// since the content would be equal.
func WriteBackup(dir string, txs []core.Transaction) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := backupPrefix + time.Now().UTC().Format("20060102_150405") + ".csv"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	if err := Export(f, txs); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	return path, nil
}

// KeepNewest deletes all but the keep most recent backup files in dir and
// returns how many were removed. Files without the backup prefix are left
// alone. The timestamped name format sorts chronologically.
func KeepNewest(dir string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	matches, err := filepath.Glob(filepath.Join(dir, backupPrefix+"*.csv"))
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}
	if len(matches) <= keep {
		return 0, nil
	}

	sort.Strings(matches)
	stale := matches[:len(matches)-keep]
	removed := 0
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove stale backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

// LatestBackup returns the path of the most recent backup, or "" when none
// exist.
func LatestBackup(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, backupPrefix+"*.csv"))
	if err != nil {
		return "", fmt.Errorf("list backups: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
