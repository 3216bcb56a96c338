// Package migrations embeds the SQL migration files applied at startup.
//
// The SQL sources carry a {{schema}} placeholder instead of a hardcoded
// schema name; ForSchema renders them for the configured schema so the
// migrations and the stores always agree on where the tables live.
package migrations

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"time"
)

//go:embed *.sql
var files embed.FS

const schemaPlaceholder = "{{schema}}"

// schemaIdent is the set of unquoted Postgres identifiers accepted as a
// schema name. Splicing into SQL text demands this strictness.
var schemaIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ForSchema renders the embedded migrations for the given schema and returns
// them as a filesystem the migration runner can read.
func ForSchema(schema string) (fs.FS, error) {
	if !schemaIdent.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name: %q", schema)
	}

	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}

	out := make(renderedFS, len(entries))
	for _, e := range entries {
		b, err := files.ReadFile(e.Name())
		if err != nil {
			return nil, err
		}
		out[e.Name()] = bytes.ReplaceAll(b, []byte(schemaPlaceholder), []byte(schema))
	}
	return out, nil
}

// renderedFS is a flat read-only filesystem of rendered SQL files.
type renderedFS map[string][]byte

func (r renderedFS) Open(name string) (fs.File, error) {
	b, ok := r[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &renderedFile{info: renderedInfo{name: name, size: int64(len(b))}, Reader: bytes.NewReader(b)}, nil
}

func (r renderedFS) ReadFile(name string) ([]byte, error) {
	b, ok := r[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), b...), nil
}

func (r renderedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		out = append(out, renderedInfo{name: n, size: int64(len(r[n]))})
	}
	return out, nil
}

type renderedFile struct {
	info renderedInfo
	*bytes.Reader
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *renderedFile) Close() error               { return nil }

// renderedInfo serves as both fs.FileInfo and fs.DirEntry.
type renderedInfo struct {
	name string
	size int64
}

func (i renderedInfo) Name() string               { return i.name }
func (i renderedInfo) Size() int64                { return i.size }
func (i renderedInfo) Mode() fs.FileMode          { return 0o444 }
func (i renderedInfo) ModTime() time.Time         { return time.Time{} }
func (i renderedInfo) IsDir() bool                { return false }
func (i renderedInfo) Sys() any                   { return nil }
func (i renderedInfo) Type() fs.FileMode          { return 0 }
func (i renderedInfo) Info() (fs.FileInfo, error) { return i, nil }
