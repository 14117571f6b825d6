package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/pathutil"
)

// replaceFile creates a temp file next to target, lets fill write it, then
// syncs, sizes and renames it over target. On any failure the temp file is removed
// and target is left as it was. It returns the size of the new file.
func replaceFile(target string, fill func(tmp *os.File) error) (int64, error) {
	if err := pathutil.EnsureParentDir(target); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn("failed to remove temp file", "path", tmpPath, "error", rmErr.Error())
		}
	}()

	if err := fill(tmp); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing temp file: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true
	return info.Size(), nil
}
