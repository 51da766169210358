package engine

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Opener reveals a path in the platform file manager.
type Opener interface {
	Open(path string) error
}

// SystemOpener launches the platform file manager without waiting for it.
type SystemOpener struct{}

var linuxFileManagers = []string{"xdg-open", "nautilus", "dolphin", "thunar", "pcmanfm"}

func (SystemOpener) Open(path string) error {
	switch runtime.GOOS {
	case "windows":
		return start("explorer", path)
	case "darwin":
		return start("open", path)
	default:
		for _, fm := range linuxFileManagers {
			if _, err := exec.LookPath(fm); err != nil {
				continue
			}
			if err := start(fm, path); err == nil {
				return nil
			}
		}
		return fmt.Errorf("no file manager found (tried %v)", linuxFileManagers)
	}
}

func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// OpenInExplorer opens path in the file manager after checking it exists.
func (e *Engine) OpenInExplorer(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return e.opener.Open(path)
}
