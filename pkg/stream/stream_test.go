package stream

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func fixture(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, filepath.FromSlash(name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return fsys
}

func TestSrcMatchesNestedAndTopLevel(t *testing.T) {
	fsys := fixture(t, map[string]string{
		"src/app.ts":           "a",
		"src/core/engine.ts":   "b",
		"src/core/types.d.ts":  "c",
		"src/core/view.html":   "d",
		"src/index.html":       "e",
		"src/plugins/x/y/z.ts": "f",
		"other/outside.ts":     "g",
	})

	got, err := Src(fsys, Selector{
		Base:    "src",
		Include: []string{"**/*.ts"},
		Exclude: []string{"**/*.d.ts"},
	})
	if err != nil {
		t.Fatalf("Src() error = %v", err)
	}

	want := []string{"app.ts", "core/engine.ts", "plugins/x/y/z.ts"}
	if diff := cmp.Diff(want, got.Paths()); diff != "" {
		t.Errorf("Src() paths mismatch (-want +got):\n%s", diff)
	}
	if string(got[1].Contents) != "b" {
		t.Errorf("contents = %q, want b", got[1].Contents)
	}
	if got[1].Abs() != filepath.Join("src", "core", "engine.ts") {
		t.Errorf("Abs() = %q", got[1].Abs())
	}
}

func TestSrcExcludesEntryPage(t *testing.T) {
	fsys := fixture(t, map[string]string{
		"src/index.html":   "entry",
		"src/a/index.html": "nested index is a template",
		"src/a/panel.html": "panel",
	})

	got, err := Src(fsys, Selector{Base: "src", Include: []string{"**/*.html"}, Exclude: []string{"index.html"}})
	if err != nil {
		t.Fatalf("Src() error = %v", err)
	}

	want := []string{"a/index.html", "a/panel.html"}
	if diff := cmp.Diff(want, got.Paths()); diff != "" {
		t.Errorf("Src() paths mismatch (-want +got):\n%s", diff)
	}
}

func TestSrcMissingBase(t *testing.T) {
	got, err := Src(afero.NewMemMapFs(), Selector{Base: "nowhere", Include: []string{"**/*"}})
	if err != nil {
		t.Fatalf("Src() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty stream, got %v", got.Paths())
	}
}

func TestSrcInvalidPattern(t *testing.T) {
	fsys := fixture(t, map[string]string{"src/a.ts": ""})
	if _, err := Src(fsys, Selector{Base: "src", Include: []string{"[a-"}}); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestDestWritesEachRecordOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := Stream{
		{Path: "a.js", Contents: []byte("A")},
		{Path: "nested/b.js", Contents: []byte("B")},
	}

	if err := Dest(fsys, "temp", s); err != nil {
		t.Fatalf("Dest() error = %v", err)
	}

	for name, want := range map[string]string{"temp/a.js": "A", "temp/nested/b.js": "B"} {
		got, err := afero.ReadFile(fsys, filepath.FromSlash(name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	if exists, _ := afero.Exists(fsys, filepath.Join("temp", "a.js.tmp")); exists {
		t.Error("temporary file should be renamed away")
	}
}

func TestConcat(t *testing.T) {
	s := Stream{
		{Path: "a.js", Contents: []byte("var a;")},
		{Path: "b.js", Contents: []byte("var b;")},
	}

	got := Concat(s, "dist", "bundle.js", "\n")
	if got.Path != "bundle.js" || got.Base != "dist" {
		t.Errorf("Concat() record = %s/%s", got.Base, got.Path)
	}
	if string(got.Contents) != "var a;\nvar b;" {
		t.Errorf("Concat() contents = %q", got.Contents)
	}

	if empty := Concat(nil, "dist", "x.js", "\n"); len(empty.Contents) != 0 {
		t.Errorf("Concat(nil) contents = %q, want empty", empty.Contents)
	}
}

func TestCopyTree(t *testing.T) {
	fsys := fixture(t, map[string]string{
		"temp/node_modules/lib/index.js":      "lib",
		"temp/node_modules/lib/dist/img/a.png": "png",
	})

	n, err := CopyTree(fsys, filepath.Join("temp", "node_modules"), filepath.Join("dist", "libs"))
	if err != nil {
		t.Fatalf("CopyTree() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CopyTree() copied %d files, want 2", n)
	}

	got, err := afero.ReadFile(fsys, filepath.Join("dist", "libs", "lib", "dist", "img", "a.png"))
	if err != nil || string(got) != "png" {
		t.Errorf("copied file = %q, %v", got, err)
	}

	n, err = CopyTree(fsys, "missing", "dist")
	if err != nil || n != 0 {
		t.Errorf("CopyTree(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestWithExt(t *testing.T) {
	f := &File{Base: "src", Path: "core/engine.ts", Contents: []byte("x")}
	got := f.WithExt(".js")
	if got.Path != "core/engine.js" {
		t.Errorf("WithExt() path = %q", got.Path)
	}
	if f.Path != "core/engine.ts" {
		t.Error("WithExt() must not modify the receiver")
	}
}
