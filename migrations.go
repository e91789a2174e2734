package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ext is the extension a file must carry to be treated as a migration.
const Ext = ".sql"

// Migration represents a single migration file.
type Migration struct {
	// Name is the base filename; it is the key stored in the ledger.
	Name string

	// Filename is the path to the migration file.
	Filename string
}

// SQL reads the migration file's content verbatim.
func (m Migration) SQL() (string, error) {
	data, err := os.ReadFile(m.Filename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sortMigrations sorts migrations by filename, which is also apply order.
func sortMigrations(migs []Migration) {
	sort.Slice(migs, func(i, j int) bool {
		return migs[i].Name < migs[j].Name
	})
}

// LoadMigrations lists dir and returns every regular *.sql file in ascending
// filename order. An empty directory yields an empty slice.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		if !entry.Type().IsRegular() {
			// Follow symlinks but skip anything that is not a file at the end.
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
		}
		migrations = append(migrations, Migration{
			Name:     entry.Name(),
			Filename: filepath.Join(dir, entry.Name()),
		})
	}
	sortMigrations(migrations)
	return migrations, nil
}

// Pending returns the migrations whose names are not in applied, keeping the
// order of all.
func Pending(all []Migration, applied map[string]struct{}) []Migration {
	var runnable []Migration
	for _, m := range all {
		if _, ok := applied[m.Name]; ok {
			continue
		}
		runnable = append(runnable, m)
	}
	return runnable
}
