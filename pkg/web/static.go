package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FallbackPage is served with status 404 for paths that match no file.
const FallbackPage = "/404.html"

// Static serves the build output below a URL prefix. HTML pages get the
// live-reload client injected.
type Static struct {
	files  http.FileSystem
	prefix string
}

// NewStatic serves dir of fsys under prefix.
func NewStatic(fsys afero.Fs, dir, prefix string) *Static {
	return &Static{files: afero.NewHttpFs(fsys).Dir(dir), prefix: prefix}
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + strings.TrimPrefix(r.URL.Path, s.prefix))
	if name == "/" {
		name = "/index.html"
	}

	data, modTime, err := s.read(name)
	if errors.Is(err, os.ErrNotExist) {
		name = path.Join(name, "index.html")
		data, modTime, err = s.read(name)
	}
	if errors.Is(err, os.ErrNotExist) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if isHTML(name) {
		data = InjectLiveReload(data, s.prefix)
	}
	http.ServeContent(w, r, name, modTime, bytes.NewReader(data))
}

func (s *Static) notFound(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.read(FallbackPage)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if r.Method != http.MethodHead {
		w.Write(InjectLiveReload(data, s.prefix))
	}
}

// read returns a regular file's contents. Directories report os.ErrNotExist.
func (s *Static) read(name string) ([]byte, time.Time, error) {
	f, err := s.files.Open(name)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}
	if info.IsDir() {
		return nil, time.Time{}, fmt.Errorf("%s is a directory: %w", name, os.ErrNotExist)
	}

	data, err := io.ReadAll(f)
	return data, info.ModTime(), err
}

func isHTML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// InjectLiveReload inserts the live-reload client before the last </body>,
// or appends it when the page has none.
func InjectLiveReload(page []byte, prefix string) []byte {
	script := fmt.Sprintf(`<script src="%[1]slivereload.js" data-endpoint="%[1]slivereload" data-status="%[1]sbuild-status"></script>`, prefix)

	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), script...)
	}

	out := make([]byte, 0, len(page)+len(script))
	out = append(out, page[:i]...)
	out = append(out, script...)
	return append(out, page[i:]...)
}
