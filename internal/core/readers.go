package core

import (
	"fmt"
	"strings"

	"github.com/SimplyPrint/nfc-wedge/internal/logging"
)

// Reader represents a single reader as shown by the tray and the API.
type Reader struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`     // "picc" for contactless interfaces, "sam" for SAM slots
	Selected bool   `json:"selected"` // the reader the read loop uses
}

// ListReaders returns all PC/SC readers in service order using the production factory.
// Always returns a non-nil slice.
func ListReaders() []Reader {
	return ListReadersWith(DefaultContextFactory{})
}

// ListReadersWith is ListReaders with an explicit factory.
func ListReadersWith(factory ContextFactory) []Reader {
	rc, err := EstablishReaderContext(factory)
	if err != nil {
		return []Reader{}
	}
	defer rc.Release()

	names, err := rc.ReaderNames()
	if err != nil {
		return []Reader{}
	}

	selected := SelectReader(names)
	readers := make([]Reader, 0, len(names))
	for i, name := range names {
		readers = append(readers, Reader{
			ID:       fmt.Sprintf("reader-%d", i),
			Name:     name,
			Type:     detectReaderType(name),
			Selected: name == selected,
		})
	}

	if len(readers) > 1 {
		logging.Debug(logging.CatReader, "Several readers attached, only the first is polled", map[string]any{
			"selected": selected,
			"count":    len(readers),
		})
	}
	return readers
}

// detectReaderType determines if a reader is a PICC or SAM interface based on its name.
// Readers without an explicit marker (like some ACR122U models) count as PICC.
func detectReaderType(name string) string {
	nameLower := strings.ToLower(name)
	if strings.Contains(nameLower, " sam") || strings.Contains(nameLower, "sam ") {
		return "sam"
	}
	return "picc"
}
