package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileOptionsRepository implements OptionsRepository on a JSON file.
type FileOptionsRepository struct {
	path  string
	mutex sync.Mutex
}

// NewFileOptionsRepository creates a file-backed repository. The file
// does not have to exist yet; it is created on first save.
func NewFileOptionsRepository(path string) (*FileOptionsRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("options file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create options directory: %w", err)
	}
	return &FileOptionsRepository{path: path}, nil
}

func (r *FileOptionsRepository) Load(ctx context.Context) (*Options, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Options{}, nil
		}
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	var options Options
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, fmt.Errorf("failed to parse options file: %w", err)
	}
	return &options, nil
}

// Save writes the document to a temp file and renames it into place,
// so a crashed write never leaves a torn document.
func (r *FileOptionsRepository) Save(ctx context.Context, options *Options) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	data, err := json.MarshalIndent(options, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write options file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace options file: %w", err)
	}
	return nil
}
