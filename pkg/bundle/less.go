package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/command"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// StyleCompiler turns one stylesheet source into CSS.
type StyleCompiler interface {
	Compile(ctx context.Context, src *stream.File) ([]byte, error)
}

// Passthrough is the style compiler used when no external compiler is
// configured: plain CSS written in .less files is used as is.
type Passthrough struct{}

func (Passthrough) Compile(_ context.Context, src *stream.File) ([]byte, error) {
	return src.Contents, nil
}

// Lessc compiles through an external lessc binary fed on stdin.
type Lessc struct {
	Exec   command.Executor
	Binary string
}

func (l *Lessc) Compile(ctx context.Context, src *stream.File) ([]byte, error) {
	dir := filepath.Dir(src.Abs())
	out, err := l.Exec.RunInput(ctx, dir, src.Contents, l.Binary, "--include-path="+dir, "-")
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", src.Abs(), err)
	}
	return out, nil
}

// Less compiles src/**/*.less and concatenates the result into
// dist/css/<bundle>. The bundle is not minified.
type Less struct {
	fs       afero.Fs
	exec     command.Executor
	warnOnce sync.Once
}

func NewLess(fsys afero.Fs, exec command.Executor) *Less {
	return &Less{fs: fsys, exec: exec}
}

func (l *Less) Name() string { return "less" }

// Compiler picks the style compiler for cfg.
func (l *Less) Compiler(cfg config.Config) StyleCompiler {
	if cfg.Styles.Lessc == "" {
		return Passthrough{}
	}
	return &Lessc{Exec: l.exec, Binary: cfg.Styles.Lessc}
}

func (l *Less) Run(ctx context.Context, cfg config.Config) error {
	sources, err := stream.Src(l.fs, stream.Selector{Base: cfg.SrcDir(), Include: []string{"**/*.less"}})
	if err != nil {
		return err
	}

	log := logging.New("task.less")
	compiler := l.Compiler(cfg)
	if _, ok := compiler.(Passthrough); ok && len(sources) > 0 {
		l.warnOnce.Do(func() {
			log.Warn("styles.lessc is not set; .less files are copied without compiling, so LESS syntax reaches the browser as is")
		})
	}
	compiled := make(stream.Stream, 0, len(sources))
	for _, src := range sources {
		css, err := compiler.Compile(ctx, src)
		if err != nil {
			return err
		}
		out := src.WithExt(".css")
		out.Contents = css
		compiled = append(compiled, out)
	}

	bundle := stream.Concat(compiled, cfg.DistCSS(), cfg.Bundle.CSS, "\n")
	target := filepath.Join(cfg.DistCSS(), cfg.Bundle.CSS)
	if err := stream.WriteFile(l.fs, target, bundle.Contents); err != nil {
		return err
	}

	log.Info("bundled styles", "files", len(sources), "out", target)
	return nil
}
