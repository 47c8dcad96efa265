// Package stream models the ordered file records that flow through a build
// task: read from glob patterns, transformed in memory, written to one
// destination directory.
package stream

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// File is one record in a stream. Path is slash separated and relative to Base.
type File struct {
	Base     string
	Path     string
	Contents []byte
}

// Abs is the on-disk location the record was read from.
func (f *File) Abs() string {
	return filepath.Join(f.Base, filepath.FromSlash(f.Path))
}

// WithExt returns a copy of the record whose path carries a new extension.
func (f *File) WithExt(ext string) *File {
	return &File{
		Base:     f.Base,
		Path:     strings.TrimSuffix(f.Path, path.Ext(f.Path)) + ext,
		Contents: f.Contents,
	}
}

// Stream is an ordered sequence of records.
type Stream []*File

// Paths lists the record paths in order.
func (s Stream) Paths() []string {
	paths := make([]string, len(s))
	for i, f := range s {
		paths[i] = f.Path
	}
	return paths
}

// Selector picks files below Base. A file is selected when its Base-relative
// path matches at least one Include pattern and no Exclude pattern. Patterns
// use '/' as separator; "**/" also matches zero directories.
type Selector struct {
	Base    string
	Include []string
	Exclude []string
}

// Src reads every selected file in lexical path order. A missing Base yields
// an empty stream.
func Src(fsys afero.Fs, sel Selector) (Stream, error) {
	include, err := Compile(sel.Include...)
	if err != nil {
		return nil, err
	}
	exclude, err := Compile(sel.Exclude...)
	if err != nil {
		return nil, err
	}

	exists, err := afero.DirExists(fsys, sel.Base)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", sel.Base, err)
	}
	if !exists {
		return Stream{}, nil
	}

	var out Stream
	err = afero.Walk(fsys, sel.Base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sel.Base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !include.Match(rel) || exclude.Match(rel) {
			return nil
		}

		contents, err := afero.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		out = append(out, &File{Base: sel.Base, Path: rel, Contents: contents})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", sel.Base, err)
	}
	return out, nil
}

// Dest writes each record to dir/Path. Every record lands in exactly one file.
func Dest(fsys afero.Fs, dir string, s Stream) error {
	for _, f := range s {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := WriteFile(fsys, target, f.Contents); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes through a temporary sibling and a rename so readers (the
// dev server, the watcher) never observe a half-written file.
func WriteFile(fsys afero.Fs, name string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}

	tmp := name + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := fsys.Rename(tmp, name); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// Concat joins the records' contents with sep into a single record named name.
func Concat(s Stream, base, name, sep string) *File {
	var size int
	for _, f := range s {
		size += len(f.Contents) + len(sep)
	}

	contents := make([]byte, 0, size)
	for i, f := range s {
		if i > 0 {
			contents = append(contents, sep...)
		}
		contents = append(contents, f.Contents...)
	}
	return &File{Base: base, Path: name, Contents: contents}
}

// CopyTree copies every regular file below src into dst, keeping relative
// paths. It streams file contents instead of buffering the whole tree, which
// matters for a vendored node_modules. A missing src copies nothing.
func CopyTree(fsys afero.Fs, src, dst string) (int, error) {
	exists, err := afero.DirExists(fsys, src)
	if err != nil {
		return 0, fmt.Errorf("checking %s: %w", src, err)
	}
	if !exists {
		return 0, nil
	}

	copied := 0
	err = afero.Walk(fsys, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if err := copyFile(fsys, p, filepath.Join(dst, rel)); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(fsys afero.Fs, src, dest string) error {
	if err := fsys.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	sourceFile, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := fsys.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}

// IsNotExist reports whether err means a path is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Matcher matches slash separated paths against a set of patterns.
type Matcher []glob.Glob

// Match reports whether p matches any pattern.
func (m Matcher) Match(p string) bool {
	for _, g := range m {
		if g.Match(p) {
			return true
		}
	}
	return false
}

// Compile builds a Matcher. '*' stays within one path segment, "**" crosses
// segments and a leading "**/" also matches zero directories.
func Compile(patterns ...string) (Matcher, error) {
	var m Matcher
	for _, p := range patterns {
		variants := []string{p}
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			variants = append(variants, rest)
		}
		for _, v := range variants {
			g, err := glob.Compile(v, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			m = append(m, g)
		}
	}
	return m, nil
}
