package diag

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileSink appends "[<RFC3339 timestamp>] <msg>" lines to a file, creating it
// if needed. The file is opened per line so it can be rotated underneath us.
type FileSink struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, now: time.Now}
}

func (f *FileSink) Record(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("diag: open error log", "path", f.path, "error", err)
		return
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "[%s] %s\n", f.now().UTC().Format(time.RFC3339), msg); err != nil {
		slog.Error("diag: write error log", "path", f.path, "error", err)
	}
}
