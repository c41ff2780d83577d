package storage

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Memory is a Backend kept in process memory.
type Memory struct {
	files map[string][]byte
	m     sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (s *Memory) Create(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	s.m.Lock()
	defer s.m.Unlock()
	s.files[name] = []byte{}
	return nil
}

func (s *Memory) Size(name string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()
	data, ok := s.files[name]
	if !ok {
		return 0, unix.ENOENT
	}
	return len(data), nil
}

func (s *Memory) ReadAt(name string, p []byte, off int) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()
	data, ok := s.files[name]
	if !ok {
		return 0, unix.ENOENT
	}
	return readAt(data, p, off)
}

func (s *Memory) WriteAt(name string, p []byte, off int) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()
	data, ok := s.files[name]
	if !ok {
		return 0, unix.ENOENT
	}
	s.files[name] = writeAt(data, p, off)
	return len(p), nil
}

func (s *Memory) Remove(name string) error {
	s.m.Lock()
	defer s.m.Unlock()
	if _, ok := s.files[name]; !ok {
		return unix.ENOENT
	}
	delete(s.files, name)
	return nil
}

func readAt(data, p []byte, off int) (int, error) {
	if off < 0 {
		return 0, unix.EINVAL
	}
	if off >= len(data) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func writeAt(data, p []byte, off int) []byte {
	if end := off + len(p); end > len(data) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)
	return data
}
