package web

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ritzau/console-assembly/pkg/logging"
)

// ProxyRoute forwards requests under Path to Proto://Hostname:Port, with Path
// replaced by TargetPath.
type ProxyRoute struct {
	Proto      string
	Port       int
	Hostname   string
	Path       string
	TargetPath string
}

// Target is the upstream base URL.
func (p ProxyRoute) Target() string {
	return fmt.Sprintf("%s://%s%s", p.Proto, net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port)), p.TargetPath)
}

// Matches reports whether the request path is Path or lies below it.
func (p ProxyRoute) Matches(r *http.Request, _ *mux.RouteMatch) bool {
	return r.URL.Path == p.Path || strings.HasPrefix(r.URL.Path, strings.TrimSuffix(p.Path, "/")+"/")
}

// Rewrite maps a local request path onto the upstream path.
func (p ProxyRoute) Rewrite(path string) string {
	return p.TargetPath + strings.TrimPrefix(path, p.Path)
}

// NewProxy creates the reverse proxy for one route.
func NewProxy(route ProxyRoute) (http.Handler, error) {
	if route.Proto == "" || route.Hostname == "" || route.Port <= 0 {
		return nil, fmt.Errorf("invalid proxy route %+v", route)
	}
	target := &url.URL{
		Scheme: route.Proto,
		Host:   net.JoinHostPort(route.Hostname, strconv.Itoa(route.Port)),
	}

	proxy := httputil.NewSingleHostReverseProxy(target)

	// Customize the director to swap the route prefix for the target path
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		path := route.Rewrite(req.URL.Path)
		originalDirector(req)
		req.URL.Path = path
		req.URL.RawPath = ""
		req.Host = target.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.ErrorContext(r.Context(), "proxy error", "error", err, "target", route.Target(), "path", r.URL.Path)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return proxy, nil
}
