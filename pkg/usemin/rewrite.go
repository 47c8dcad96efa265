package usemin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/ritzau/console-assembly/pkg/compile"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// Rewriter processes the entry page: each build block's assets are bundled
// and minified, and the block is replaced by one reference to the bundle.
type Rewriter struct {
	fs       afero.Fs
	minifier *minify.M
}

func NewRewriter(fsys afero.Fs) *Rewriter {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	return &Rewriter{fs: fsys, minifier: m}
}

func (r *Rewriter) Name() string { return "usemin" }

func (r *Rewriter) Run(ctx context.Context, cfg config.Config) error {
	log := logging.New("task.usemin")

	entry := cfg.EntryHTML()
	page, err := afero.ReadFile(r.fs, entry)
	if err != nil {
		return fmt.Errorf("reading entry page: %w", err)
	}

	rewritten, assets, err := r.Rewrite(page, filepath.Dir(entry), cfg.Root)
	if err != nil {
		return fmt.Errorf("%s: %w", entry, err)
	}

	out := append(assets, &stream.File{Base: cfg.DistDir(), Path: filepath.Base(entry), Contents: rewritten})
	if err := stream.Dest(r.fs, cfg.DistDir(), out); err != nil {
		return err
	}
	for _, f := range assets {
		log.Info("wrote asset", "file", f.Path, "bytes", len(f.Contents))
	}
	return nil
}

// Rewrite returns the rewritten page and the assets it now references, with
// paths relative to the page's output directory. References are resolved
// against pageDir first and root second.
func (r *Rewriter) Rewrite(page []byte, pageDir, root string) ([]byte, stream.Stream, error) {
	blocks, err := ParseBlocks(page)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    strings.Builder
		assets stream.Stream
		last   int
	)
	for _, b := range blocks {
		sources, err := r.load(b.Refs, pageDir, root)
		if err != nil {
			return nil, nil, err
		}

		var built stream.Stream
		switch b.Type {
		case TypeCSS:
			built, err = r.buildCSS(b.Dest, sources)
		case TypeJS:
			built, err = buildJS(b.Dest, sources)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("building %s: %w", b.Dest, err)
		}
		assets = append(assets, built...)

		out.Write(page[last:b.Start])
		out.WriteString(b.Indent)
		out.WriteString(tag(b.Type, built[0].Path))
		last = b.End
	}
	out.Write(page[last:])

	return []byte(out.String()), assets, nil
}

func (r *Rewriter) load(refs []string, pageDir, root string) (stream.Stream, error) {
	sources := make(stream.Stream, 0, len(refs))
	for _, ref := range refs {
		name, err := r.resolve(ref, pageDir, root)
		if err != nil {
			return nil, err
		}
		contents, err := afero.ReadFile(r.fs, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		sources = append(sources, &stream.File{Path: ref, Contents: contents})
	}
	return sources, nil
}

func (r *Rewriter) resolve(ref, pageDir, root string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("cannot bundle remote reference %q", ref)
	}

	rel := filepath.FromSlash(strings.TrimPrefix(u.Path, "/"))
	candidates := []string{filepath.Join(root, rel)}
	if !strings.HasPrefix(u.Path, "/") {
		candidates = []string{filepath.Join(pageDir, rel), filepath.Join(root, rel)}
	}
	for _, name := range candidates {
		if exists, err := afero.Exists(r.fs, name); err != nil {
			return "", err
		} else if exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("referenced file %q not found (looked in %s)", ref, strings.Join(candidates, ", "))
}

func (r *Rewriter) buildCSS(dest string, sources stream.Stream) (stream.Stream, error) {
	minified := make(stream.Stream, 0, len(sources))
	for _, src := range sources {
		out, err := r.minifier.Bytes("text/css", src.Contents)
		if err != nil {
			return nil, fmt.Errorf("minifying %s: %w", src.Path, err)
		}
		minified = append(minified, &stream.File{Path: src.Path, Contents: out})
	}
	return stream.Stream{stream.Concat(minified, "", dest, "\n")}, nil
}

// sourceMap is a version 3 index map: one section per bundled file, each
// carrying that file's own map at the line where its code starts.
type sourceMap struct {
	Version  int       `json:"version"`
	File     string    `json:"file"`
	Sections []section `json:"sections"`
}

type section struct {
	Offset offset          `json:"offset"`
	Map    json.RawMessage `json:"map"`
}

type offset struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// buildJS minifies each source on its own so the bundle's map points back at
// the referenced files. Inline maps already in a source are carried through.
func buildJS(dest string, sources stream.Stream) (stream.Stream, error) {
	var (
		code     []byte
		line     int
		sections = make([]section, 0, len(sources))
	)
	for _, src := range sources {
		result := api.Transform(string(src.Contents), api.TransformOptions{
			Loader:            api.LoaderJS,
			Sourcefile:        src.Path,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
			Sourcemap:         api.SourceMapExternal,
			SourcesContent:    api.SourcesContentInclude,
		})
		if len(result.Errors) > 0 {
			return nil, fmt.Errorf("minifying %s: %s", src.Path, compile.Describe(result.Errors))
		}
		if len(result.Code) == 0 {
			continue
		}
		if !bytes.HasSuffix(result.Code, []byte("\n")) {
			result.Code = append(result.Code, '\n')
		}

		sections = append(sections, section{Offset: offset{Line: line}, Map: result.Map})
		code = append(code, result.Code...)
		line += bytes.Count(result.Code, []byte("\n"))
	}

	name := Revision(dest, code)
	index, err := json.Marshal(sourceMap{Version: 3, File: path.Base(name), Sections: sections})
	if err != nil {
		return nil, fmt.Errorf("encoding source map: %w", err)
	}
	code = append(code, fmt.Sprintf("//# sourceMappingURL=%s.map\n", path.Base(name))...)
	return stream.Stream{
		{Path: name, Contents: code},
		{Path: name + ".map", Contents: index},
	}, nil
}

// Revision inserts a content hash into name: "js/app.js" becomes
// "js/app-<10 hex digits>.js".
func Revision(name string, contents []byte) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), ContentHash(contents), ext)
}

// ContentHash is the first 10 hex digits of the xxhash64 digest of contents.
func ContentHash(contents []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(contents))[:10]
}
