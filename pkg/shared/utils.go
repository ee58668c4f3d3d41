package helpers

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CloseOrLog Helper function to attempt to close IO connections and log error if it fails, useful for closing on defer
func CloseOrLog(closer io.Closer) {
	err := closer.Close()
	if err != nil {
		slog.Error("Error closing I/O", "error", err)
	}
}

// InstallDir returns the directory containing the running executable, with
// symlinks resolved.
func InstallDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return filepath.Dir(exe), nil
}

// ResolveInstallPath makes a relative path absolute against base. When base is
// empty the install directory is used.
func ResolveInstallPath(base, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if base == "" {
		dir, err := InstallDir()
		if err != nil {
			return "", err
		}
		base = dir
	}
	return filepath.Join(base, path), nil
}
