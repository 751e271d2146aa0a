// Package service registers the wedge to start with the user's session, so it
// runs in the background without a window.
package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

const appName = "nfc-wedge"

var (
	ErrAlreadyInstalled = errors.New("autostart already installed")
	ErrNotInstalled     = errors.New("autostart not installed")
	ErrUnsupported      = errors.New("autostart not supported on this platform")
)

// Service installs and removes the per-user autostart entry.
type Service interface {
	Install() error
	Uninstall() error
	IsInstalled() bool
	Status() (string, error)
}

// launchData is what the autostart templates are rendered with.
type launchData struct {
	Label          string
	ExecutablePath string
	Args           []string
	LogPath        string
	WorkingDir     string
}

// executablePath returns the running binary with symlinks resolved.
func executablePath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return execPath, nil
}

func renderTemplate(w io.Writer, name, text string, data launchData) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return nil
}

// writeTemplate renders a template into path, creating parent directories.
func writeTemplate(path, name, text string, data launchData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := renderTemplate(f, name, text, data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
