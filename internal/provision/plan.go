package provision

import (
	"context"
	"fmt"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/assets"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/verify"
)

// SubStepFunc receives progress within a step, such as the package or
// extension currently being installed.
type SubStepFunc func(name string)

// Step is one named unit of the plan.
type Step struct {
	Name string

	// Run performs the step. sub may be called any number of times.
	Run func(ctx context.Context, priv privilege.Context, sub SubStepFunc) error

	// Check is probed after Run succeeds. NoTool skips the probe.
	Check verify.Tool
}

// Plan returns the ordered install steps. Package names are checked here so
// that a bad name fails the run before anything is installed.
func (i *Installer) Plan(manifest *assets.Manifest, settings []byte) ([]Step, error) {
	for _, pkg := range i.cfg.Packages {
		if !debianPackageName.MatchString(pkg) {
			return nil, &PackageNameError{Name: pkg}
		}
	}
	if manifest == nil {
		manifest = &assets.Manifest{}
	}
	packages := append([]string(nil), i.cfg.Packages...)

	return []Step{
		{
			Name: "Update package index",
			Run: func(ctx context.Context, priv privilege.Context, _ SubStepFunc) error {
				return i.AptUpdate(ctx, priv)
			},
		},
		{
			Name: "Install system packages",
			Run: func(ctx context.Context, priv privilege.Context, sub SubStepFunc) error {
				for _, pkg := range packages {
					sub(pkg)
					if err := i.AptInstall(ctx, priv, pkg); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name: "Install nvm " + i.cfg.NVMVersion,
			Run: func(ctx context.Context, priv privilege.Context, _ SubStepFunc) error {
				return i.InstallNVM(ctx, priv)
			},
			Check: verify.NVM,
		},
		{
			Name: fmt.Sprintf("Install Node.js %s", i.cfg.NodeVersion),
			Run: func(ctx context.Context, priv privilege.Context, _ SubStepFunc) error {
				return i.InstallNode(ctx, priv)
			},
			Check: verify.Node,
		},
		{
			Name: "Install Rust toolchain",
			Run: func(ctx context.Context, priv privilege.Context, _ SubStepFunc) error {
				return i.InstallRust(ctx, priv)
			},
			Check: verify.Rust,
		},
		{
			Name: "Install VS Code",
			Run: func(ctx context.Context, priv privilege.Context, sub SubStepFunc) error {
				return i.InstallEditor(ctx, priv, sub)
			},
			Check: verify.Editor,
		},
		{
			Name: "Configure VS Code",
			Run: func(ctx context.Context, priv privilege.Context, sub SubStepFunc) error {
				return i.ConfigureEditor(ctx, priv, manifest, settings, sub)
			},
		},
	}, nil
}
