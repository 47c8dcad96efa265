// Package compile turns TypeScript sources into JavaScript.
package compile

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// NotificationTitle heads the developer notification for a failed compile.
const NotificationTitle = "Typescript compilation error"

// Notifier surfaces failures the developer must fix.
type Notifier interface {
	Notify(title, message string)
}

// Error is a compilation failure located in a source file.
type Error struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// Compiler transforms every selected .ts file into a .js file of the same
// relative path under the temp directory.
type Compiler struct {
	fs       afero.Fs
	notifier Notifier
}

// NewCompiler creates a compiler reading and writing through fsys.
func NewCompiler(fsys afero.Fs, notifier Notifier) *Compiler {
	return &Compiler{fs: fsys, notifier: notifier}
}

func (c *Compiler) Name() string { return "tsc" }

// Run compiles src/**/*.ts, skipping declaration files. The first file that
// fails to compile aborts the task with an *Error.
func (c *Compiler) Run(ctx context.Context, cfg config.Config) error {
	log := logging.New("task.tsc")

	sources, err := stream.Src(c.fs, stream.Selector{
		Base:    cfg.SrcDir(),
		Include: []string{"**/*.ts"},
		Exclude: []string{"**/*.d.ts"},
	})
	if err != nil {
		return err
	}

	tsconfig, err := c.tsconfig(cfg)
	if err != nil {
		return err
	}

	out := make(stream.Stream, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug("compiling", "file", src.Path)

		compiled, err := Transform(src, tsconfig, cfg.SourceMap)
		if err != nil {
			if c.notifier != nil {
				c.notifier.Notify(NotificationTitle, err.Error())
			}
			return err
		}
		out = append(out, compiled)
	}

	if err := stream.Dest(c.fs, cfg.TempDir(), out); err != nil {
		return err
	}
	log.Info("compiled", "files", len(out), "sourcemap", cfg.SourceMap)
	return nil
}

func (c *Compiler) tsconfig(cfg config.Config) (string, error) {
	raw, err := afero.ReadFile(c.fs, cfg.File("tsconfig.json"))
	if stream.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading tsconfig.json: %w", err)
	}
	return string(raw), nil
}

// Transform compiles one TypeScript record. With sourceMap set an inline
// source map is appended to the output.
func Transform(src *stream.File, tsconfig string, sourceMap bool) (*stream.File, error) {
	opts := api.TransformOptions{
		Loader:      api.LoaderTS,
		Sourcefile:  src.Abs(),
		TsconfigRaw: tsconfig,
	}
	if sourceMap {
		opts.Sourcemap = api.SourceMapInline
		opts.SourcesContent = api.SourcesContentInclude
	}

	result := api.Transform(string(src.Contents), opts)
	if len(result.Errors) > 0 {
		return nil, toError(src.Abs(), result.Errors)
	}

	out := src.WithExt(".js")
	out.Contents = result.Code
	return out, nil
}

func toError(file string, msgs []api.Message) *Error {
	first := msgs[0]
	e := &Error{File: file, Message: first.Text}
	if loc := first.Location; loc != nil {
		e.Line = loc.Line
		e.Column = loc.Column + 1
	}
	if len(msgs) > 1 {
		e.Message = fmt.Sprintf("%s (and %d more %s)", e.Message, len(msgs)-1, plural(len(msgs)-1, "error"))
	}
	return e
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Describe renders every message of a failed transform, one per line.
func Describe(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location == nil {
			lines = append(lines, m.Text)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column+1, m.Text))
	}
	return strings.Join(lines, "\n")
}
