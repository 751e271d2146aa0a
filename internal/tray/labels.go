package tray

import (
	"fmt"
	"unicode/utf8"
)

const maxStatusLen = 60

func readerLabel(count int) string {
	switch count {
	case 0:
		return "Readers: None connected"
	case 1:
		return "Readers: 1 connected"
	default:
		return fmt.Sprintf("Readers: %d connected", count)
	}
}

func toggleLabel(active bool) string {
	if active {
		return "Stop reading"
	}
	return "Start reading"
}

// statusLabel shortens a status line to fit a menu item.
func statusLabel(text string) string {
	if text == "" {
		text = "Starting..."
	}
	if utf8.RuneCountInString(text) > maxStatusLen {
		runes := []rune(text)
		text = string(runes[:maxStatusLen-3]) + "..."
	}
	return "Status: " + text
}

// versionLabel prefixes release versions with "v" but leaves dev builds alone.
func versionLabel(version string) string {
	if len(version) > 0 && version[0] >= '0' && version[0] <= '9' {
		version = "v" + version
	}
	return "NFC Wedge " + version
}
