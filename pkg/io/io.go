package io

import (
	"errors"
	"os"
)

var (
	_ FileIO = (*OSFileSystem)(nil)
)

// OSFileSystem is the default implementation of file io using the os package
type OSFileSystem struct{}

// Stat is a wrapper around os.Stat
func (o *OSFileSystem) Stat(target string) (os.FileInfo, error) {
	return os.Stat(target)
}

// Open is a wrapper around os.Open
func (o *OSFileSystem) Open(name string) (*os.File, error) {
	return os.Open(name)
}

// MkdirAll is a wrapper around os.MkdirAll
func (o *OSFileSystem) MkdirAll(path string, mode os.FileMode) error {
	return os.MkdirAll(path, mode)
}

// Remove deletes a file. A file that is already gone is not an error.
func (o *OSFileSystem) Remove(name string) error {
	err := os.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FileExists reports whether path can be stat'd and is a regular file
func (o *OSFileSystem) FileExists(path string) bool {
	info, err := o.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
