package fd

import (
	"io"

	"golang.org/x/sys/unix"
)

// Console is the terminal every process starts with on descriptors 0 and 1.
type Console struct {
	In  io.Reader
	Out io.Writer
}

type consoleIn struct{ r io.Reader }

func (c consoleIn) Name() string { return "console:in" }

func (c consoleIn) ReadAt(p []byte, off int) (int, error) {
	if c.r == nil || len(p) == 0 {
		return 0, nil
	}
	n, err := c.r.Read(p)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (c consoleIn) WriteAt(p []byte, off int) (int, error) {
	return 0, unix.EBADF
}

type consoleOut struct{ w io.Writer }

func (c consoleOut) Name() string { return "console:out" }

func (c consoleOut) ReadAt(p []byte, off int) (int, error) {
	return 0, unix.EBADF
}

func (c consoleOut) WriteAt(p []byte, off int) (int, error) {
	if c.w == nil {
		return len(p), nil
	}
	return c.w.Write(p)
}
