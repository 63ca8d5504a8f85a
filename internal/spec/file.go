package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MaxFileSize bounds specification files.
const MaxFileSize = 1 << 20

// ErrUnstructured is returned by LoadFile for extensions it does not decode.
var ErrUnstructured = errors.New("not a structured specification file")

// LoadFile decodes a .yaml, .yml, .json or .toml document and validates it.
func LoadFile(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnstructured, path)
	}

	data, err := readLimited(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidSpec, path, err)
	}

	doc = doc.withDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &doc, nil
}

func readText(path string) (string, error) {
	data, err := readLimited(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open specification: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("specification %s exceeds %d bytes", path, MaxFileSize)
	}
	return data, nil
}
