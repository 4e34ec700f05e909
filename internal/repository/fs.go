package repository

import "github.com/spf13/afero"

// FileSystemRepository is the filesystem every manifest, hook and state write goes through.
type FileSystemRepository interface {
	afero.Fs
}
