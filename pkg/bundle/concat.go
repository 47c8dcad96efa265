// Package bundle concatenates compiled scripts and stylesheets into the
// application bundles under dist/.
package bundle

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// SizeReporter receives the size diagnostics of a written bundle.
type SizeReporter interface {
	ReportSize(file string, size, gzipped int)
}

// Concat joins temp/*.js into dist/js/<bundle>, prefixed with the project's
// license header.
type Concat struct {
	fs       afero.Fs
	reporter SizeReporter
}

func NewConcat(fsys afero.Fs, reporter SizeReporter) *Concat {
	return &Concat{fs: fsys, reporter: reporter}
}

func (c *Concat) Name() string { return "concat" }

func (c *Concat) Run(ctx context.Context, cfg config.Config) error {
	log := logging.New("task.concat")

	scripts, err := stream.Src(c.fs, stream.Selector{Base: cfg.TempDir(), Include: []string{"*.js"}})
	if err != nil {
		return err
	}

	license, err := LicenseHeader(c.fs, cfg.LicenseFile())
	if stream.IsNotExist(err) {
		log.Warn("license file not found, bundle has no header", "file", cfg.LicenseFile())
	} else if err != nil {
		return err
	}

	bundle := stream.Concat(scripts, cfg.DistJS(), cfg.Bundle.JS, "\n")
	bundle.Contents = append([]byte(license), bundle.Contents...)

	target := filepath.Join(cfg.DistJS(), cfg.Bundle.JS)
	if err := stream.WriteFile(c.fs, target, bundle.Contents); err != nil {
		return err
	}

	gzipped, err := GzipSize(bundle.Contents)
	if err != nil {
		return fmt.Errorf("measuring %s: %w", target, err)
	}
	log.Info("bundled scripts", "files", len(scripts), "out", target, "bytes", len(bundle.Contents), "gzipBytes", gzipped)
	if c.reporter != nil {
		c.reporter.ReportSize(target, len(bundle.Contents), gzipped)
	}
	return nil
}

// LicenseHeader reads rules["license-header"][1] from a tslint
// configuration. A file without the rule yields an empty header.
func LicenseHeader(fsys afero.Fs, name string) (string, error) {
	raw, err := afero.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}

	var lint struct {
		Rules map[string]json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(raw, &lint); err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	rule, ok := lint.Rules["license-header"]
	if !ok {
		return "", nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(rule, &args); err != nil {
		return "", fmt.Errorf("parsing license-header rule in %s: %w", name, err)
	}
	if len(args) < 2 {
		return "", fmt.Errorf("license-header rule in %s has no header text", name)
	}

	var header string
	if err := json.Unmarshal(args[1], &header); err != nil {
		return "", fmt.Errorf("license-header text in %s: %w", name, err)
	}
	return header, nil
}

// GzipSize returns the length of data after gzip compression.
func GzipSize(data []byte) (int, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(data); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
