//go:build !linux

package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/SimplyPrint/nfc-wedge/internal/api"
	"github.com/SimplyPrint/nfc-wedge/internal/core"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"github.com/SimplyPrint/nfc-wedge/internal/status"
)

const readerRefresh = 5 * time.Second

// Controller is the read loop as seen by the tray.
type Controller interface {
	Active() bool
	Toggle() bool
}

// TrayApp manages the system tray icon and menu
type TrayApp struct {
	serverAddr string
	ctrl       Controller
	log        *status.Log
	onQuit     func()
	mu         sync.Mutex
	done       chan struct{}

	mStatus  *systray.MenuItem
	mReaders *systray.MenuItem
	mToggle  *systray.MenuItem
}

// New creates a new TrayApp instance
func New(serverAddr string, ctrl Controller, log *status.Log, onQuit func()) *TrayApp {
	return &TrayApp{
		serverAddr: serverAddr,
		ctrl:       ctrl,
		log:        log,
		onQuit:     onQuit,
		done:       make(chan struct{}),
	}
}

// RunWithServer runs the tray on the main thread and starts the server in a goroutine.
// This function BLOCKS - it must be called from the main goroutine on macOS.
func (t *TrayApp) RunWithServer(serverStart func()) {
	systray.Run(func() {
		t.onReady()
		if serverStart != nil {
			go serverStart()
		}
	}, t.onExit)
}

// Quit closes the tray, which makes RunWithServer return.
func (t *TrayApp) Quit() {
	systray.Quit()
}

func (t *TrayApp) onReady() {
	systray.SetIcon(iconData(t.ctrl.Active()))
	systray.SetTitle("")
	systray.SetTooltip("NFC Wedge")

	mVersion := systray.AddMenuItem(versionLabel(api.Version), "")
	mVersion.Disable()

	systray.AddSeparator()

	t.mStatus = systray.AddMenuItem(statusLabel(""), "Last reader status")
	t.mStatus.Disable()

	t.mReaders = systray.AddMenuItem("Readers: Checking...", "Connected NFC readers")
	t.mReaders.Disable()

	systray.AddSeparator()

	t.mToggle = systray.AddMenuItem(toggleLabel(t.ctrl.Active()), "Start or stop reading cards")
	mOpen := systray.AddMenuItem("Open Status", "Show status in the browser")

	systray.AddSeparator()

	mQuit := systray.AddMenuItem("Quit", "Exit NFC Wedge")

	lines, cancel := t.log.Subscribe()
	go t.followStatus(lines, cancel)
	go t.refreshReaders()

	go func() {
		defer logging.RecoverAndLog("tray menu", false)
		for {
			select {
			case <-t.mToggle.ClickedCh:
				t.ctrl.Toggle()
				t.syncToggle()
			case <-mOpen.ClickedCh:
				t.openBrowser(fmt.Sprintf("http://%s/v1/status", t.serverAddr))
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			case <-t.done:
				return
			}
		}
	}()
}

func (t *TrayApp) onExit() {
	close(t.done)
	if t.onQuit != nil {
		t.onQuit()
	}
}

// followStatus shows every accepted status line. Toggles made through the
// API arrive here too, so the toggle item is re-synced on each line.
func (t *TrayApp) followStatus(lines <-chan status.Line, cancel func()) {
	defer logging.RecoverAndLog("tray status", false)
	defer cancel()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			t.mu.Lock()
			t.mStatus.SetTitle(statusLabel(line.Text))
			t.mu.Unlock()
			t.syncToggle()
		case <-t.done:
			return
		}
	}
}

func (t *TrayApp) syncToggle() {
	active := t.ctrl.Active()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.mToggle.SetTitle(toggleLabel(active))
	systray.SetIcon(iconData(active))
}

func (t *TrayApp) refreshReaders() {
	defer logging.RecoverAndLog("tray readers", false)

	ticker := time.NewTicker(readerRefresh)
	defer ticker.Stop()

	for {
		count := len(core.ListReaders())
		t.mu.Lock()
		t.mReaders.SetTitle(readerLabel(count))
		t.mu.Unlock()

		select {
		case <-ticker.C:
		case <-t.done:
			return
		}
	}
}

func (t *TrayApp) openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		logging.Warn(logging.CatSystem, "Failed to open browser", map[string]any{
			"error": err.Error(),
		})
	}
}

// IsSupported returns true if the system tray is supported on this platform
func IsSupported() bool {
	return true
}
