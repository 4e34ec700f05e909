package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/spf13/afero"
)

// ErrVersionFieldNotFound is returned when the manifest has no top-level version string.
var ErrVersionFieldNotFound = errors.New(`manifest has no top-level "version" field`)

// ManifestRepository reads package.json and rewrites its version in place.
type ManifestRepository interface {
	Read(ctx context.Context, path string) (*domain.Manifest, error)
	WriteVersion(ctx context.Context, path, version string) error
}

type jsonManifestRepository struct {
	fs afero.Fs
}

// NewManifestRepository creates a ManifestRepository on fs.
func NewManifestRepository(fs afero.Fs) ManifestRepository {
	return &jsonManifestRepository{fs: fs}
}

func (r *jsonManifestRepository) Read(_ context.Context, path string) (*domain.Manifest, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	manifest.Path = path
	return &manifest, nil
}

// WriteVersion replaces only the bytes of the top-level version value, so
// indentation, key order and trailing newlines survive untouched.
func (r *jsonManifestRepository) WriteVersion(_ context.Context, path, version string) error {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	start, end, err := locateVersionValue(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	quoted, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("failed to encode version: %w", err)
	}
	updated := make([]byte, 0, len(data)+len(quoted))
	updated = append(updated, data[:start]...)
	updated = append(updated, quoted...)
	updated = append(updated, data[end:]...)
	perm := os.FileMode(0o644)
	if info, err := r.fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := afero.WriteFile(r.fs, path, updated, perm); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// locateVersionValue returns the byte range of the quoted value of the
// top-level "version" key. Nested "version" keys are skipped.
func locateVersionValue(data []byte) (int, int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	expectKey := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, 0, ErrVersionFieldNotFound
		}
		if err != nil {
			return 0, 0, fmt.Errorf("invalid manifest JSON: %w", err)
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				depth++
				expectKey = true
			case '[':
				depth++
				expectKey = false
			case '}', ']':
				depth--
				expectKey = depth >= 1
			}
			continue
		case string:
			if depth == 1 && expectKey && v == "version" {
				valueTok, err := dec.Token()
				if err != nil {
					return 0, 0, fmt.Errorf("invalid manifest JSON: %w", err)
				}
				if _, ok := valueTok.(string); !ok {
					return 0, 0, ErrVersionFieldNotFound
				}
				end := int(dec.InputOffset())
				start := bytes.LastIndexByte(data[:end-1], '"')
				return start, end, nil
			}
		}
		if depth == 1 {
			if expectKey {
				expectKey = false
			} else {
				expectKey = true
			}
		}
	}
}
