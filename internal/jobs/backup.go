package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix = "data-"
	backupSuffix = ".json"
	backupLayout = "20060102-150405"
)

// BackupFunc returns the bytes to write for one backup.
type BackupFunc func(ctx context.Context) ([]byte, error)

// Backup returns a job that writes a timestamped snapshot into dir and keeps
// only the newest keep files (keep <= 0 keeps everything).
func Backup(dir string, keep int, snapshot BackupFunc, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		_, err := WriteBackup(ctx, dir, keep, snapshot, now())
		return err
	}
}

// WriteBackup writes one backup stamped at ts and prunes old ones. It returns
// the path written.
func WriteBackup(ctx context.Context, dir string, keep int, snapshot BackupFunc, ts time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("backup dir required")
	}
	if snapshot == nil {
		return "", errors.New("backup source required")
	}
	b, err := snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := backupPrefix + ts.Format(backupLayout) + backupSuffix
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if keep > 0 {
		if err := pruneBackups(dir, keep); err != nil {
			return path, fmt.Errorf("prune: %w", err)
		}
	}
	return path, nil
}

// ListBackups returns backup file paths in dir, newest first.
func ListBackups(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, backupPrefix) || !strings.HasSuffix(n, backupSuffix) {
			continue
		}
		names = append(names, n)
	}
	// The timestamp layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out, nil
}

func pruneBackups(dir string, keep int) error {
	files, err := ListBackups(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range files[min(keep, len(files)):] {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
