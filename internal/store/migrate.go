package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
)

// applyMigrations executes the SQL files found in dir of filesystem in
// lexicographical order, each through exec.
func applyMigrations(ctx context.Context, filesystem fs.FS, dir string, exec func(ctx context.Context, sql string) error) error {
	sub, err := fs.Sub(filesystem, dir)
	if err != nil {
		return fmt.Errorf("open migrations dir %s: %w", dir, err)
	}

	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		sqlBytes, err := fs.ReadFile(sub, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if len(sqlBytes) == 0 {
			continue
		}

		if err := exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s/%s: %w", dir, entry.Name(), err)
		}
	}

	return nil
}
