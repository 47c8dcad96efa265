package tasks

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/command"
	"github.com/ritzau/console-assembly/pkg/compile"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/output"
	"github.com/ritzau/console-assembly/pkg/pipeline"
	"github.com/ritzau/console-assembly/pkg/pubsub"
)

func init() {
	color.NoColor = true
}

const entryPage = `<!DOCTYPE html>
<html>
<head>
  <!-- build:css css/app.css -->
  <link rel="stylesheet" href="dist/css/hawtio-console-assembly.css">
  <!-- endbuild -->
</head>
<body>
  <!-- build:js js/app.js -->
  <script src="dist/js/hawtio-console-assembly.js"></script>
  <!-- endbuild -->
</body>
</html>
`

type fixture struct {
	fs        afero.Fs
	exec      *command.MockExecutor
	out       *bytes.Buffer
	reporter  *output.Reporter
	publisher *pubsub.SSEPublisher
	runner    *pipeline.Runner
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, filepath.FromSlash(name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// The package manager leaves one namespaced package with images behind
	exec := &command.MockExecutor{
		OnRun: func(call command.Call) ([]byte, error) {
			modules := filepath.Join(call.Dir, "node_modules")
			for name, content := range map[string]string{
				"@hawtio/core/index.js":          "core",
				"@hawtio/core/dist/img/logo.svg": "<svg/>",
				"@hawtio/util/index.js":          "util",
			} {
				if err := afero.WriteFile(fsys, filepath.Join(modules, filepath.FromSlash(name)), []byte(content), 0644); err != nil {
					return nil, err
				}
			}
			return []byte("success Saved lockfile.\n"), nil
		},
	}

	out := &bytes.Buffer{}
	f := &fixture{
		fs:        fsys,
		exec:      exec,
		out:       out,
		reporter:  output.NewReporter(out),
		publisher: pubsub.NewSSEPublisher(),
	}
	t.Cleanup(func() { f.publisher.Close() })

	runner, err := NewRunner(config.Default(), Deps{Fs: fsys, Exec: exec, Reporter: f.reporter, Publisher: f.publisher})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	f.runner = runner
	return f
}

func project() map[string]string {
	return map[string]string{
		"package.json":          `{"dependencies": {"@hawtio/core": "^1.0.0"}}`,
		"tslint.json":           `{"rules": {"license-header": [true, "/* Licensed under Apache-2.0 */"]}}`,
		"src/index.html":        entryPage,
		"src/app.ts":            "const greeting: string = 'hello';\nconsole.log(greeting);\n",
		"src/plugin.ts":         "export function answer(): number { return 42; }\n",
		"src/views/panel.html":  "<div class=\"panel\">{{title}}</div>\n",
		"src/styles/main.less":  ".panel { color: red; }\n",
		"src/types/global.d.ts": "declare const hawtioPluginLoader: any;\n",
	}
}

func (f *fixture) dist(t *testing.T) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := afero.Walk(f.fs, "dist", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(f.fs, p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(p)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walking dist: %v", err)
	}
	return files
}

func TestPlans(t *testing.T) {
	f := newFixture(t, project())

	tests := []struct {
		targets []string
		want    []string
	}{
		{[]string{Build}, append(append([]string(nil), BuildOrder...), Build)},
		{[]string{Default}, append(append([]string(nil), BuildOrder...), Build, "connect", "watch", Default)},
		{[]string{"concat", "tsc", "template"}, []string{"tsc", "template", "concat"}},
		{[]string{"404"}, []string{"usemin", "404"}},
		{[]string{"reload", "less"}, []string{"less", "reload"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.targets, ","), func(t *testing.T) {
			got, err := f.runner.Plan(tt.targets...)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEveryCommandLineTaskIsRegistered(t *testing.T) {
	f := newFixture(t, project())
	for _, name := range []string{
		"clean", "tsc", "template", "concat", "less", "usemin", "install-dependencies",
		"copy-dependencies", "copy-images", "404", "connect", "watch", "reload", Build, Default,
	} {
		if !f.runner.Has(name) {
			t.Errorf("task %q is not registered", name)
		}
	}
}

func TestBuild(t *testing.T) {
	f := newFixture(t, project())

	if err := f.runner.Run(context.Background(), Build); err != nil {
		t.Fatalf("Run(build) error = %v", err)
	}

	dist := f.dist(t)
	index, ok := dist["dist/index.html"]
	if !ok {
		t.Fatal("dist/index.html missing")
	}
	if dist["dist/404.html"] != index {
		t.Error("404.html should equal index.html byte for byte")
	}
	if strings.Contains(index, "build:js") || strings.Contains(index, "hawtio-console-assembly.js") {
		t.Errorf("build blocks should be rewritten, got:\n%s", index)
	}

	bundle := dist["dist/js/hawtio-console-assembly.js"]
	if !strings.HasPrefix(bundle, "/* Licensed under Apache-2.0 */") {
		t.Errorf("bundle should start with the license header, got %q", bundle)
	}
	if !strings.Contains(bundle, "hawtio-console-assembly-templates") {
		t.Error("bundle should contain the template module")
	}
	if !strings.Contains(bundle, "answer") {
		t.Error("bundle should contain compiled sources")
	}
	if strings.Contains(bundle, "hawtioPluginLoader") {
		t.Error("declaration files must not be compiled")
	}

	if dist["dist/css/hawtio-console-assembly.css"] != ".panel { color: red; }\n" {
		t.Errorf("css bundle = %q", dist["dist/css/hawtio-console-assembly.css"])
	}
	if dist["dist/libs/@hawtio/core/index.js"] != "core" {
		t.Error("dependencies should be copied to dist/libs")
	}
	if dist["dist/img/logo.svg"] != "<svg/>" {
		t.Error("package images should be merged into dist/img")
	}

	calls := f.exec.Calls()
	if len(calls) != 1 || calls[0].Name != "yarn" || calls[0].Dir != "temp" {
		t.Errorf("package manager calls = %+v", calls)
	}

	if !strings.Contains(f.out.String(), "hawtio-console-assembly.js") {
		t.Errorf("size report missing from output:\n%s", f.out.String())
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	f := newFixture(t, project())

	if err := f.runner.Run(context.Background(), Build); err != nil {
		t.Fatalf("first build: %v", err)
	}
	first := f.dist(t)

	if err := f.runner.Run(context.Background(), Build); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if diff := cmp.Diff(first, f.dist(t)); diff != "" {
		t.Errorf("rebuild after clean differs (-first +second):\n%s", diff)
	}
}

func TestCompileErrorHaltsBeforeBundle(t *testing.T) {
	files := project()
	files["src/broken.ts"] = "const x: = ;\n"
	f := newFixture(t, files)

	var events []pipeline.Event
	f.runner.Observe(func(e pipeline.Event) { events = append(events, e) })

	err := f.runner.Run(context.Background(), Build)

	var taskErr *pipeline.TaskError
	if !errors.As(err, &taskErr) || taskErr.Task != "tsc" {
		t.Fatalf("Run() error = %v, want tsc task error", err)
	}
	var compileErr *compile.Error
	if !errors.As(err, &compileErr) {
		t.Errorf("error should carry a *compile.Error, got %T", taskErr.Err)
	}

	if exists, _ := afero.Exists(f.fs, filepath.Join("dist", "js", "hawtio-console-assembly.js")); exists {
		t.Error("no bundle may exist after a compile error")
	}
	if !strings.Contains(f.out.String(), compile.NotificationTitle) {
		t.Errorf("developer notification missing from output:\n%s", f.out.String())
	}

	last := events[len(events)-1]
	if last.Task != "tsc" || last.State != pipeline.StateFailed {
		t.Errorf("last event = %+v, want tsc failed", last)
	}
}

func TestMissingManifestFailsInstall(t *testing.T) {
	files := project()
	delete(files, "package.json")
	f := newFixture(t, files)

	err := f.runner.Run(context.Background(), Build)
	var taskErr *pipeline.TaskError
	if !errors.As(err, &taskErr) || taskErr.Task != "install-dependencies" {
		t.Fatalf("Run() error = %v, want install-dependencies task error", err)
	}
	if exists, _ := afero.Exists(f.fs, filepath.Join("dist", "404.html")); exists {
		t.Error("tasks after the failure must not run")
	}
}

func TestBuildStatusIsPublished(t *testing.T) {
	f := newFixture(t, project())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := f.publisher.Subscribe(ctx, pubsub.TopicBuildStatus)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Run(context.Background(), "clean"); err != nil {
		t.Fatal(err)
	}

	var types []string
	for len(types) < 2 {
		e := <-sub.Events()
		types = append(types, e.Type)
	}
	if diff := cmp.Diff([]string{"started", "succeeded"}, types); diff != "" {
		t.Errorf("status events mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadPublishes(t *testing.T) {
	f := newFixture(t, project())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := f.publisher.Subscribe(ctx, pubsub.TopicReload)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Run(context.Background(), "reload"); err != nil {
		t.Fatal(err)
	}
	if e := <-sub.Events(); e.Type != "reload" {
		t.Errorf("event type = %q, want reload", e.Type)
	}
}
