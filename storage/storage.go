// Package storage holds the named byte objects that user files live in.
package storage

import (
	"strings"

	"golang.org/x/sys/unix"
)

// MaxName is the longest object name accepted.
const MaxName = 256

// Backend is a flat namespace of byte objects. Implementations return
// unix.ENOENT for missing objects and io.EOF from ReadAt when fewer than
// len(p) bytes remain, like io.ReaderAt.
type Backend interface {
	// Create makes an empty object, truncating any existing one.
	Create(name string) error
	// Size reports the length of an existing object.
	Size(name string) (int, error)
	ReadAt(name string, p []byte, off int) (int, error)
	// WriteAt extends the object as needed.
	WriteAt(name string, p []byte, off int) (int, error)
	Remove(name string) error
}

// ValidName rejects names the namespace cannot hold.
func ValidName(name string) error {
	switch {
	case name == "" || strings.IndexByte(name, 0) >= 0:
		return unix.EINVAL
	case len(name) > MaxName:
		return unix.ENAMETOOLONG
	}
	return nil
}
