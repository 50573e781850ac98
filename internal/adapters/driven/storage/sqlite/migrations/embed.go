// Package migrations holds the SQLite schema as numbered SQL files.
//
// Files are named NNN_description.up.sql / NNN_description.down.sql. Each up
// file records its own version in schema_migrations.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is one up script.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Pending returns the up migrations newer than current, oldest first.
func Pending(current int) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var pending []Migration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			return nil, fmt.Errorf("migration %s: missing version prefix", name)
		}
		if version <= current {
			continue
		}
		body, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
		pending = append(pending, Migration{Version: version, Name: name, SQL: string(body)})
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending, nil
}
