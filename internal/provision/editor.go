package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/assets"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/privilege"
	"github.com/randomizedcoder/go-ubuntu-devsetup/internal/verify"
)

// Microsoft apt repository for VS Code.
const (
	EditorKeyURL     = "https://packages.microsoft.com/keys/microsoft.asc"
	KeyringDir       = "/etc/apt/keyrings"
	EditorKeyring    = KeyringDir + "/packages.microsoft.gpg"
	EditorSourceList = "/etc/apt/sources.list.d/vscode.list"
	EditorPackage    = "code"

	EditorSourceEntry = "deb [arch=amd64,arm64,armhf signed-by=" + EditorKeyring + "] https://packages.microsoft.com/repos/code stable main\n"
)

// SettingsRelPath is the editor settings file, relative to the user's home.
const SettingsRelPath = ".config/Code/User/settings.json"

// extensionInstallScript installs the extension id in $1.
func extensionInstallScript(priv privilege.Context) string {
	return "exec " + verify.EditorLauncher(priv) + ` --install-extension "$1" --force`
}

// The document arrives on stdin; cat writes it unchanged.
const settingsWriteScript = `target="$HOME/$1"
mkdir -p "$(dirname "$target")" && cat > "$target"`

// InstallEditor adds the Microsoft signing key and apt source, then installs
// the editor package. sub is told about each phase.
func (i *Installer) InstallEditor(ctx context.Context, priv privilege.Context, sub SubStepFunc) error {
	sub("signing key")
	if _, err := i.run(ctx, priv.RootCommand("install", "-d", "-m", "0755", KeyringDir)); err != nil {
		return fmt.Errorf("creating %s: %w", KeyringDir, err)
	}

	res, err := i.run(ctx, priv.RootCommand("wget", "-qO-", EditorKeyURL))
	if err != nil {
		return fmt.Errorf("downloading signing key: %w", err)
	}
	key := res.Stdout
	if len(bytes.TrimSpace(key)) == 0 {
		return errors.New("downloading signing key: empty response")
	}

	// Dearmor with the key on stdin; no shell pipeline involved.
	dearmor := priv.RootCommand("gpg", "--batch", "--yes", "--dearmor", "-o", EditorKeyring).Stdin(key)
	if _, err := i.run(ctx, dearmor); err != nil {
		return fmt.Errorf("writing %s: %w", EditorKeyring, err)
	}
	if _, err := i.run(ctx, priv.RootCommand("chmod", "0644", EditorKeyring)); err != nil {
		return fmt.Errorf("chmod %s: %w", EditorKeyring, err)
	}

	sub("apt source")
	tee := priv.RootCommand("tee", EditorSourceList).Stdin([]byte(EditorSourceEntry))
	if _, err := i.run(ctx, tee); err != nil {
		return fmt.Errorf("writing %s: %w", EditorSourceList, err)
	}

	sub("apt-get update")
	if err := i.AptUpdate(ctx, priv); err != nil {
		return err
	}

	sub(EditorPackage)
	return i.AptInstall(ctx, priv, EditorPackage)
}

// ConfigureEditor installs every manifest extension, in manifest order, then
// writes the settings document byte for byte into the user's profile.
func (i *Installer) ConfigureEditor(ctx context.Context, priv privilege.Context, manifest *assets.Manifest, settings []byte, sub SubStepFunc) error {
	script := extensionInstallScript(priv)
	for _, id := range manifest.Extensions {
		sub(id)
		if _, err := i.run(ctx, priv.UserCommand(script, id)); err != nil {
			return fmt.Errorf("installing extension %s: %w", id, err)
		}
		i.logger.Info("extension_installed", "extension", id)
	}

	sub("settings.json")
	return i.WriteSettings(ctx, priv, settings)
}

// WriteSettings replaces ~/.config/Code/User/settings.json in the target
// user's home with settings.
func (i *Installer) WriteSettings(ctx context.Context, priv privilege.Context, settings []byte) error {
	spec := priv.UserCommand(settingsWriteScript, SettingsRelPath).Stdin(settings)
	if _, err := i.run(ctx, spec); err != nil {
		return fmt.Errorf("writing editor settings: %w", err)
	}
	i.logger.Info("settings_written", "path", "~/"+SettingsRelPath, "bytes", len(settings))
	return nil
}
