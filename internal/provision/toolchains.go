package provision

import (
	"context"
	"fmt"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
)

// $1 is the nvm release tag.
const nvmInstallScript = `set -o pipefail
curl -fsSL -o- "https://raw.githubusercontent.com/nvm-sh/nvm/$1/install.sh" | bash`

const nodeInstallScript = `. "$HOME/.nvm/nvm.sh" && nvm install "$1" && nvm alias default "$1"`

const rustupInstallScript = `set -o pipefail
curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y`

// InstallNVM runs the nvm installer for the configured release in the
// target user's login shell.
func (i *Installer) InstallNVM(ctx context.Context, priv privilege.Context) error {
	spec := priv.UserCommand(nvmInstallScript, i.cfg.NVMVersion)
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("installing nvm %s: %w", i.cfg.NVMVersion, err)
	}
	i.logger.Info("nvm_installed", "version", i.cfg.NVMVersion, "context", priv.String())
	return nil
}

// InstallNode installs the configured Node.js major version through nvm and
// makes it the default.
func (i *Installer) InstallNode(ctx context.Context, priv privilege.Context) error {
	spec := priv.UserCommand(nodeInstallScript, i.cfg.NodeVersion)
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("installing node %s: %w", i.cfg.NodeVersion, err)
	}
	i.logger.Info("node_installed", "version", i.cfg.NodeVersion, "context", priv.String())
	return nil
}

// InstallRust runs rustup-init non-interactively with the default profile.
func (i *Installer) InstallRust(ctx context.Context, priv privilege.Context) error {
	spec := priv.UserCommand(rustupInstallScript)
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("installing rust: %w", err)
	}
	i.logger.Info("rust_installed", "context", priv.String())
	return nil
}
