package exporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// replaceFile writes a sibling temp file through write, then renames it over path
func replaceFile(path string, write func(out io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		if err = os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", path, err)
		}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// replaceDir builds a sibling temp directory through build, then swaps it in for path
func replaceDir(path string, build func(dir string) error) (err error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	if err = build(tmp); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	var backup string
	if _, statErr := os.Stat(path); statErr == nil {
		backup = tmp + ".old"
		if err = os.Rename(path, backup); err != nil {
			return fmt.Errorf("failed to move aside %s: %w", path, err)
		}
	}
	if err = os.Rename(tmp, path); err != nil {
		if backup != "" {
			os.Rename(backup, path)
		}
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if backup != "" {
		os.RemoveAll(backup)
	}
	return nil
}
