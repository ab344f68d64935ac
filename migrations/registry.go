// Package migrations registers the embedded ledger and claim schema with a
// go-persistence-bun client.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	bdpay "github.com/goliatone/go-bdpay"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel = "go-bdpay"

	rootDir = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory under rootDir.
var dialectDirs = []struct{ dialect, dir string }{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalize(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems resolves one filesystem per dialect from the embedded tree, or
// from sources[0] when given. Every up migration needs a matching down file.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := bdpay.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		dir := path.Join(rootDir, entry.dir)
		sub, err := fs.Sub(root, dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", entry.dialect, err)
		}
		spec := FilesystemSpec{Dialect: entry.dialect, Path: dir, FS: sub}
		if _, err := upMigrations(spec); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Register calls registerFn once for each filesystem whose dialect is a
// validation target.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       SourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, fsys := range filesystems {
		if !slices.Contains(reg.ValidationTargets, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return reg, nil
}

// Names lists the up migrations of one dialect in apply order.
func Names(dialect string, sources ...fs.FS) ([]string, error) {
	filesystems, err := Filesystems(sources...)
	if err != nil {
		return nil, err
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	for _, fsys := range filesystems {
		if fsys.Dialect == dialect {
			return upMigrations(fsys)
		}
	}
	return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
}

func upMigrations(fsys FilesystemSpec) ([]string, error) {
	ups, err := fs.Glob(fsys.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", fsys.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", fsys.Path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys.FS, down); err != nil {
			return nil, fmt.Errorf("migrations: %s migration %q has no down file", fsys.Dialect, up)
		}
	}
	slices.Sort(ups)
	return ups, nil
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
