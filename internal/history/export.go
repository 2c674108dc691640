package history

import (
	"fmt"
	"os"
	"path/filepath"

	"visualsoal/internal/types"
)

// ExportImage decodes the record's image and writes it to dir as
// <id><ext>. It returns the written path.
func ExportImage(rec types.Record, dir string) (string, error) {
	if rec.ImageData == "" {
		return "", fmt.Errorf("record %s has no image", rec.ID)
	}
	mime, data, err := types.DecodeDataURL(rec.ImageData)
	if err != nil {
		return "", fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	target := filepath.Join(dir, rec.ID+types.FileExtension(mime))
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to commit image: %w", err)
	}
	return target, nil
}
