// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"strings"
)

// FindFiles walks root in fsys and returns the paths of all regular files
// whose name ends with extension, in lexical order. An empty extension
// matches every file. A missing root yields no files and no error.
func FindFiles(fsys fs.FS, root string, extension string) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
