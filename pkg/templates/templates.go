// Package templates inlines HTML view templates into a JavaScript module that
// preloads Angular's $templateCache.
package templates

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// OutputFile is the generated module's name inside the temp directory.
const OutputFile = "templates.js"

const header = `angular.module(%q, []).run(["$templateCache", function($templateCache) {`

const footer = `}]); hawtioPluginLoader.addModule(%q);`

const entry = `$templateCache.put(%s,%s);`

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\r", `\r`,
	"\n", `\n`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Quote renders s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}

// Bundle renders the template cache module. URLs are root joined with each
// record's path; records are emitted in the order given.
func Bundle(module, root string, s stream.Stream) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, header, module)
	for _, f := range s {
		fmt.Fprintf(&b, entry, Quote(path.Join(root, f.Path)), Quote(string(f.Contents)))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, footer, module)
	return []byte(b.String())
}

// Task builds temp/templates.js from every HTML file under src except the
// entry page.
type Task struct {
	fs afero.Fs
}

func NewTask(fsys afero.Fs) *Task {
	return &Task{fs: fsys}
}

func (t *Task) Name() string { return "template" }

func (t *Task) Run(ctx context.Context, cfg config.Config) error {
	sources, err := stream.Src(t.fs, stream.Selector{
		Base:    cfg.SrcDir(),
		Include: []string{"**/*.html"},
		Exclude: []string{filepath.Base(cfg.EntryHTML())},
	})
	if err != nil {
		return err
	}

	root := filepath.ToSlash(cfg.Paths.Src)
	out := Bundle(cfg.Templates.Module, root, sources)
	if err := stream.WriteFile(t.fs, filepath.Join(cfg.TempDir(), OutputFile), out); err != nil {
		return err
	}

	logging.New("task.template").Info("bundled templates", "count", len(sources), "module", cfg.Templates.Module)
	return nil
}
