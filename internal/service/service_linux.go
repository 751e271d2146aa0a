//go:build linux

package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// XDG autostart entry: the wedge types into the graphical session, so it
// starts with that session rather than as a system service.
const desktopTemplate = `[Desktop Entry]
Type=Application
Name=NFC Wedge
Comment=Types NFC card UIDs into the focused application
Exec={{.ExecutablePath}}{{range .Args}} {{.}}{{end}}
Terminal=false
Categories=Utility;
StartupNotify=false
NoDisplay=true
X-GNOME-Autostart-enabled=true
`

type linuxService struct {
	configDir string
}

// New creates a new platform-specific service manager
func New() Service {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return &linuxService{configDir: configDir}
}

func (s *linuxService) autostartPath() string {
	return filepath.Join(s.configDir, "autostart", appName+".desktop")
}

func (s *linuxService) Install() error {
	if s.IsInstalled() {
		return ErrAlreadyInstalled
	}
	execPath, err := executablePath()
	if err != nil {
		return err
	}
	return writeTemplate(s.autostartPath(), "desktop", desktopTemplate, launchData{
		ExecutablePath: execPath,
		Args:           []string{"-no-tray"},
	})
}

func (s *linuxService) Uninstall() error {
	if !s.IsInstalled() {
		return ErrNotInstalled
	}
	if err := os.Remove(s.autostartPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove autostart file: %w", err)
	}
	return nil
}

func (s *linuxService) IsInstalled() bool {
	return fileExists(s.autostartPath())
}

func (s *linuxService) Status() (string, error) {
	if !s.IsInstalled() {
		return "not installed", nil
	}
	if err := exec.Command("pgrep", "-x", appName).Run(); err == nil {
		return "running (autostart)", nil
	}
	return "installed (autostart) but not running", nil
}
