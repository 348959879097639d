package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
)

var headerTmpl = template.Must(template.New("header").Parse(`-- Migration: {{.Name}}{{if eq .Direction "down"}} (Rollback){{end}}
-- Created: {{.Timestamp}}
{{- if and .Description (eq .Direction "up")}}
-- Description: {{.Description}}
{{- end}}

`))

// versionWidth is the zero padded width of sequential versions (000001)
const versionWidth = 6

// MigrationFile is a created up/down pair.
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// pair is one migration version found in a source.
type pair struct {
	version uint
	base    string // 000002_add_schedules
	up      bool
	down    bool
}

// CreateMigration writes the next sequential up/down pair into dir.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	safe := sanitizeName(name)
	if safe == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	existing, err := scanDir(dir)
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].version + 1
	}

	version := fmt.Sprintf("%0*d", versionWidth, next)
	base := filepath.Join(dir, version+"_"+safe)
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}
	if err := mf.write(mf.UpPath, source.Up); err != nil {
		return nil, err
	}
	if err := mf.write(mf.DownPath, source.Down); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func (mf *MigrationFile) write(path string, dir source.Direction) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s migration: %w", dir, err)
	}
	defer f.Close()
	return headerTmpl.Execute(f, struct {
		*MigrationFile
		Direction source.Direction
	}{mf, dir})
}

// sanitizeName lowercases name and joins its words with underscores.
func sanitizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	var b strings.Builder
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
		if w == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(w)
	}
	return b.String()
}

// ListMigrations lists the migrations of a directory. A missing directory
// has none.
func ListMigrations(dir string) ([]string, error) {
	pairs, err := scanDir(dir)
	return names(pairs), err
}

// ListMigrationsFS returns the migration base names of fsys in version
// order. Every version needs both an up and a down file.
func ListMigrationsFS(fsys fs.FS) ([]string, error) {
	pairs, err := scan(fsys)
	if err != nil {
		return nil, err
	}
	return names(pairs), nil
}

func names(pairs []pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.base)
	}
	return out
}

func scanDir(dir string) ([]pair, error) {
	pairs, err := scan(os.DirFS(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return pairs, err
}

// scan parses file names the way golang-migrate does (123_name.up.sql).
func scan(fsys fs.FS) ([]pair, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[uint]*pair)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := source.Parse(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %s has no numeric version", entry.Name())
		}
		base := strings.TrimSuffix(entry.Name(), "."+string(m.Direction)+".sql")
		p, ok := byVersion[m.Version]
		if !ok {
			p = &pair{version: m.Version, base: base}
			byVersion[m.Version] = p
		} else if p.base != base {
			return nil, fmt.Errorf("migrations %s and %s share version %d", p.base, base, m.Version)
		}
		switch m.Direction {
		case source.Up:
			p.up = true
		case source.Down:
			p.down = true
		}
	}

	pairs := make([]pair, 0, len(byVersion))
	for _, p := range byVersion {
		switch {
		case !p.up:
			return nil, fmt.Errorf("migration %s has no up file", p.base)
		case !p.down:
			return nil, fmt.Errorf("migration %s has no down file", p.base)
		}
		pairs = append(pairs, *p)
	}
	slices.SortFunc(pairs, func(a, b pair) int { return cmp.Compare(a.version, b.version) })
	return pairs, nil
}
