package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"coursepipe/internal/logging"
)

// CleanResult contains the outcome of a workspace cleanup.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanOrphaned removes task workspaces under tasksDir whose task id is not
// in active. Only directories named like task ids are considered.
func CleanOrphaned(ctx context.Context, tasksDir string, active map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	tasksDir = strings.TrimSpace(tasksDir)
	if tasksDir == "" {
		return result
	}

	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: tasksDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "task_") {
			continue
		}
		if _, ok := active[entry.Name()]; ok {
			continue
		}
		dirPath := filepath.Join(tasksDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned task workspace",
					logging.String("path", dirPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check runtime_dir permissions"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed orphaned task workspace",
				logging.String("path", dirPath),
				logging.String(logging.FieldEventType, "workspace_cleanup"),
			)
		}
	}
	return result
}

// Remove deletes the workspace for one task. Missing directories are not an error.
func (l Layout) Remove() error {
	if strings.TrimSpace(l.root) == "" {
		return nil
	}
	return os.RemoveAll(l.root)
}
