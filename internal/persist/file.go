package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// FileKV stores values in a YAML file through a private viper instance.
type FileKV struct {
	path string
	mu   sync.Mutex
	v    *viper.Viper
}

// DefaultFilePath returns the settings file location under the user config dir.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "image-compressor", "settings.yaml"), nil
}

// NewFileKV opens (or lazily creates) the settings file at path.
func NewFileKV(path string) (*FileKV, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings file %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat settings file %s: %w", path, err)
	}

	return &FileKV{path: path, v: v}, nil
}

// Path returns the backing file path.
func (f *FileKV) Path() string { return f.path }

func (f *FileKV) Available() bool { return f.path != "" }

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.v.IsSet(key) {
		return "", false, nil
	}
	return f.v.GetString(key), true, nil
}

// Set updates key and rewrites the whole file.
func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	f.v.Set(key, value)
	if err := f.v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
