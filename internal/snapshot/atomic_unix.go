//go:build !windows

package snapshot

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// writeFileAtomic replaces path so readers never see a partial JPEG.
func writeFileAtomic(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
