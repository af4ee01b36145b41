package ocr

import (
	"fmt"
	"os"
)

// CheckDataDir reports ErrEngineUnavailable when dir is set but is not a
// readable directory. An empty dir leaves the engine on its default data.
func CheckDataDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: tessdata directory %q: %v", ErrEngineUnavailable, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: tessdata path %q is not a directory", ErrEngineUnavailable, dir)
	}
	return nil
}
