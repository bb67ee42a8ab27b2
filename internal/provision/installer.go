// Package provision holds the install steps that turn a fresh Ubuntu
// machine into a development workstation.
//
// Root-scoped work (apt, the keyring, source lists) runs as the current
// process. User-scoped work (nvm, node, rustup, editor extensions and
// settings) goes through privilege.Context.UserCommand so it lands in the
// home directory of the person who ran sudo.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/config"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/logging"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/process"
)

// debianPackageName follows Debian policy 5.6.1.
var debianPackageName = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)

// PackageNameError is returned for a package name apt would not accept.
type PackageNameError struct {
	Name string
}

func (e *PackageNameError) Error() string {
	return fmt.Sprintf("invalid package name %q", e.Name)
}

// Installer runs install operations through an Executor.
type Installer struct {
	exec   process.Executor
	logger *slog.Logger
	cfg    *config.Config
}

// New creates an Installer. cfg supplies package list and tool versions.
func New(exec process.Executor, logger *slog.Logger, cfg *config.Config) *Installer {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Installer{exec: exec, logger: logger, cfg: cfg}
}

func (i *Installer) run(ctx context.Context, spec *process.Spec) (*process.Result, error) {
	i.logger.Debug("command_planned", "command", spec.String())
	return i.exec.Execute(ctx, spec)
}

// AptUpdate refreshes the package index.
func (i *Installer) AptUpdate(ctx context.Context, priv privilege.Context) error {
	spec := priv.RootCommand("apt-get", "update").Env("DEBIAN_FRONTEND", "noninteractive")
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	return nil
}

// AptInstall installs one package non-interactively.
func (i *Installer) AptInstall(ctx context.Context, priv privilege.Context, pkg string) error {
	if !debianPackageName.MatchString(pkg) {
		return &PackageNameError{Name: pkg}
	}
	spec := priv.RootCommand("apt-get", "install", "-y", pkg).Env("DEBIAN_FRONTEND", "noninteractive")
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("installing %s: %w", pkg, err)
	}
	i.logger.Info("package_installed", "package", pkg)
	return nil
}
