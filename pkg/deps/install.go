// Package deps vendors the console's runtime dependencies: it installs them
// with the package manager in the temp directory and copies the resolved
// tree and its images into dist/.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/command"
	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/stream"
)

// Manifest is the package manager's dependency list. It must exist.
const Manifest = "package.json"

// Lockfile pins resolved versions. It is copied when present.
const Lockfile = "yarn.lock"

// InstallArgs are passed to the package manager. Only production
// dependencies are installed, flattened, without running package scripts.
var InstallArgs = []string{
	"install",
	"--production",
	"--flat",
	"--no-bin-links",
	"--no-progress",
	"--ignore-scripts",
	"--non-interactive",
}

// Installer stages the manifest in the temp directory and runs the package
// manager there.
type Installer struct {
	fs   afero.Fs
	exec command.Executor
}

func NewInstaller(fsys afero.Fs, exec command.Executor) *Installer {
	return &Installer{fs: fsys, exec: exec}
}

func (i *Installer) Name() string { return "install-dependencies" }

func (i *Installer) Run(ctx context.Context, cfg config.Config) error {
	log := logging.New("task.install")

	if err := i.stage(cfg, Manifest, true); err != nil {
		return err
	}
	if err := i.stage(cfg, Lockfile, false); err != nil {
		return err
	}

	log.Info("installing dependencies", "dir", cfg.TempDir(), "command", cfg.Vendor.Yarn)
	out, err := i.exec.Run(ctx, cfg.TempDir(), cfg.Vendor.Yarn, InstallArgs...)
	if err != nil {
		return fmt.Errorf("installing dependencies: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		log.Debug(scanner.Text())
	}
	return nil
}

func (i *Installer) stage(cfg config.Config, name string, required bool) error {
	src := cfg.File(name)
	exists, err := afero.Exists(i.fs, src)
	if err != nil {
		return fmt.Errorf("checking %s: %w", src, err)
	}
	if !exists {
		if required {
			return fmt.Errorf("%s not found in %s", name, cfg.Root)
		}
		return nil
	}

	data, err := afero.ReadFile(i.fs, src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	return stream.WriteFile(i.fs, filepath.Join(cfg.TempDir(), name), data)
}
