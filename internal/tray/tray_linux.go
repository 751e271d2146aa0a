//go:build linux

package tray

import "github.com/SimplyPrint/nfc-wedge/internal/status"

// Controller is the read loop as seen by the tray.
type Controller interface {
	Active() bool
	Toggle() bool
}

// TrayApp is a no-op on Linux, where the wedge runs headless.
type TrayApp struct{}

func New(serverAddr string, ctrl Controller, log *status.Log, onQuit func()) *TrayApp {
	return &TrayApp{}
}

// RunWithServer runs serverStart on the calling goroutine.
func (t *TrayApp) RunWithServer(serverStart func()) {
	if serverStart != nil {
		serverStart()
	}
}

func (t *TrayApp) Quit() {}

// IsSupported returns false: the tray library needs extra desktop
// dependencies on Linux, so the tray is left out there.
func IsSupported() bool {
	return false
}
