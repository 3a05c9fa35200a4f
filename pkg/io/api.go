package io

import (
	"os"
)

// FileIO covers the file operations used to stage episodes on local disk
type FileIO interface {
	Stat(target string) (os.FileInfo, error)
	Open(name string) (*os.File, error)
	MkdirAll(name string, perm os.FileMode) error
	Remove(name string) error
	FileExists(path string) bool
}
