package fd

import (
	"golang.org/x/sys/unix"
)

// Reserved descriptors.
const (
	Stdin  = 0
	Stdout = 1

	reserved = 2
)

// File is the object behind a descriptor.
type File interface {
	Name() string
	ReadAt(p []byte, off int) (int, error)
	WriteAt(p []byte, off int) (int, error)
}

type descriptor struct {
	file File
	pos  int // the current position in the file
}

// Table is the descriptor table of one process. It is only ever used by
// the process that owns it.
type Table struct {
	files *Files
	slots []*descriptor
}

// NewTable makes a table of size slots, the first two of which are taken
// by the console.
func (fs *Files) NewTable(size int, console Console) *Table {
	if size < reserved {
		size = reserved
	}
	t := &Table{files: fs, slots: make([]*descriptor, size)}
	t.slots[Stdin] = &descriptor{file: consoleIn{console.In}}
	t.slots[Stdout] = &descriptor{file: consoleOut{console.Out}}
	return t
}

// Size is the capacity of the table, reserved slots included.
func (t *Table) Size() int {
	return len(t.slots)
}

// Len is the number of occupied slots.
func (t *Table) Len() int {
	n := 0
	for _, d := range t.slots {
		if d != nil {
			n++
		}
	}
	return n
}

// Creat creates or truncates name and opens it on the lowest free slot.
func (t *Table) Creat(name string) (int, error) {
	return t.open(name, true)
}

// Open opens the existing object name on the lowest free slot.
func (t *Table) Open(name string) (int, error) {
	return t.open(name, false)
}

func (t *Table) open(name string, create bool) (int, error) {
	// Find the slot first so a full table has no side effects.
	fd := -1
	for i := reserved; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			fd = i
			break
		}
	}
	if fd == -1 {
		return -1, unix.EMFILE
	}

	of, err := t.files.acquire(name, create)
	if err != nil {
		return -1, err
	}
	t.slots[fd] = &descriptor{file: of}
	return fd, nil
}

func (t *Table) get(fd int) (*descriptor, error) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, unix.EBADF
	}
	return t.slots[fd], nil
}

// Valid reports whether fd is open.
func (t *Table) Valid(fd int) bool {
	_, err := t.get(fd)
	return err == nil
}

// Read reads up to len(p) bytes at the descriptor's position. It returns
// 0 at end of file.
func (t *Table) Read(fd int, p []byte) (int, error) {
	d, err := t.get(fd)
	if err != nil {
		return -1, err
	}
	n, err := d.file.ReadAt(p, d.pos)
	if err != nil {
		return -1, err
	}
	d.pos += n
	return n, nil
}

// Write writes p at the descriptor's position.
func (t *Table) Write(fd int, p []byte) (int, error) {
	d, err := t.get(fd)
	if err != nil {
		return -1, err
	}
	n, err := d.file.WriteAt(p, d.pos)
	if err != nil {
		return -1, err
	}
	d.pos += n
	return n, nil
}

// File returns the open file on fd, or nil for the console and free slots.
func (t *Table) File(fd int) *OpenFile {
	d, err := t.get(fd)
	if err != nil {
		return nil
	}
	of, _ := d.file.(*OpenFile)
	return of
}

// Close frees fd. The console descriptors cannot be closed.
func (t *Table) Close(fd int) error {
	if fd < reserved {
		return unix.EBADF
	}
	d, err := t.get(fd)
	if err != nil {
		return err
	}
	t.slots[fd] = nil
	if of, ok := d.file.(*OpenFile); ok {
		t.files.release(of)
	}
	return nil
}

// CloseAll closes every descriptor, completing any unlinks that were
// waiting on them.
func (t *Table) CloseAll() {
	for fd := reserved; fd < len(t.slots); fd++ {
		if t.slots[fd] != nil {
			t.Close(fd)
		}
	}
	t.slots[Stdin] = nil
	t.slots[Stdout] = nil
}
