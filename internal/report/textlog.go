package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maltedev/shop-compare/internal/models"
)

// TextLog is an append-only product log. Existing content is never rewritten.
type TextLog struct {
	mu   sync.Mutex
	path string
}

func NewTextLog(path string) (*TextLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &TextLog{path: path}, nil
}

func (l *TextLog) Path() string {
	return l.path
}

// Append writes a run header followed by one line per product.
func (l *TextLog) Append(query string, at time.Time, products []models.Product) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open product log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# %s search %q: %d products\n", at.Format(time.RFC3339), query, len(products)); err != nil {
		return fmt.Errorf("failed to write product log: %w", err)
	}
	for _, p := range products {
		if _, err := fmt.Fprintln(f, p.String()); err != nil {
			return fmt.Errorf("failed to write product log: %w", err)
		}
	}

	return f.Sync()
}
