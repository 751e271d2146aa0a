package output

import (
	"io"
	"sync"
)

// Writer writes each UID and a line ending to an io.Writer.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	ending string
}

// NewWriter creates a Writer. An empty ending means "\n".
func NewWriter(w io.Writer, ending string) *Writer {
	if ending == "" {
		ending = "\n"
	}
	return &Writer{w: w, ending: ending}
}

func (w *Writer) Emit(uid string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.w, uid+w.ending)
	return err
}
