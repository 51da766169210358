package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ncruces/zenity"
)

// Dialogs opens native pickers. A cancelled picker is not an error.
type Dialogs interface {
	// SelectFolder returns the chosen folder, or ok=false when none was chosen.
	SelectFolder() (path string, ok bool, err error)
	// SelectFiles returns the chosen files, or an empty slice when cancelled.
	SelectFiles(extensions []string) ([]string, error)
}

// ZenityDialogs shows the pickers of the host desktop.
type ZenityDialogs struct{}

func (ZenityDialogs) SelectFolder() (string, bool, error) {
	selected, err := zenity.SelectFile(
		zenity.Directory(),
		zenity.Title("Select folder with images"),
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("folder picker failed: %w", err)
	}
	return selected, selected != "", nil
}

func (ZenityDialogs) SelectFiles(extensions []string) ([]string, error) {
	patterns := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		patterns = append(patterns, "*"+strings.ToLower(ext))
	}
	selected, err := zenity.SelectFileMultiple(
		zenity.Title("Select images"),
		zenity.FileFilters{
			{Name: "Images", Patterns: patterns, CaseFold: true},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("file picker failed: %w", err)
	}
	return selected, nil
}

// SelectFolder asks the user for a folder.
func (e *Engine) SelectFolder() (*string, error) {
	path, ok, err := e.dialogs.SelectFolder()
	if err != nil || !ok {
		return nil, err
	}
	return &path, nil
}

// SelectFiles asks the user for image files.
func (e *Engine) SelectFiles() ([]string, error) {
	files, err := e.dialogs.SelectFiles(e.opts.SupportedExtensions)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}
