package params

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"dfolks/internal/component"
	"dfolks/internal/config"
	apperrors "dfolks/internal/errors"
)

// Loader substitutes file:// parameter values with the YAML documents they reference
type Loader struct {
	// Root anchors relative references. Empty means the working directory.
	Root string
}

// NewLoader creates a loader rooted at root
func NewLoader(root string) *Loader {
	return &Loader{Root: root}
}

// IsReference reports whether v is a string carrying the file:// prefix, and returns the path part
func IsReference(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, config.FilePrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, config.FilePrefix), true
}

// Path resolves a reference path against the loader root
func (l *Loader) Path(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref), nil
	}
	root := l.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}
	return filepath.Join(root, ref), nil
}

// Load reads the YAML document at ref.
// Mappings keep their key order as yaml.MapSlice.
func (l *Loader) Load(ref string) (any, error) {
	path, err := l.Path(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewFileNotFoundError(path)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("cannot stat %s", path), err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if info.IsDir() || (ext != ".yaml" && ext != ".yml") {
		return nil, apperrors.NewUnsupportedFileTypeError(path, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("cannot read %s", path), err)
	}

	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("invalid YAML in %s", path), err).
			WithContext("path", path)
	}
	return generic, nil
}

// Expand returns a copy of cfg with every top-level file:// value replaced by the loaded document
func (l *Loader) Expand(cfg component.Config) (component.Config, error) {
	out := make(component.Config, len(cfg))
	copy(out, cfg)

	for i, item := range out {
		ref, ok := IsReference(item.Value)
		if !ok {
			continue
		}
		doc, err := l.Load(ref)
		if err != nil {
			return nil, fmt.Errorf("parameter %v: %w", item.Key, err)
		}
		out[i] = yaml.MapItem{Key: item.Key, Value: doc}
	}
	return out, nil
}
