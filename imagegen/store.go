package imagegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes generated image bytes into an output directory.
type FileStore struct {
	Dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save writes img as campaign_<id>.<ext> and returns the file path. Images
// that only carry a URL are not downloaded; the URL is returned as is.
func (s *FileStore) Save(id string, img *Image) (string, error) {
	if img == nil {
		return "", errors.New("nil image")
	}
	if len(img.Data) == 0 {
		if img.URL != "" {
			return img.URL, nil
		}
		return "", errors.New("image has no data")
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, fmt.Sprintf("campaign_%s.%s", id, img.Extension()))
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}
