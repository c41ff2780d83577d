package machine

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/orivej/ukern/fault"
)

// Memory is the physical memory of one process.
type Memory struct {
	layout Layout
	bytes  []byte
}

func NewMemory(layout Layout) *Memory {
	return &Memory{layout: layout, bytes: make([]byte, layout.Size)}
}

func (m *Memory) Layout() Layout {
	return m.layout
}

// Check returns the exception a word access to addr would raise, or nil.
func (m *Memory) Check(addr uint32, write bool) *fault.Exception {
	ex := &fault.Exception{Addr: addr, Write: write}
	switch r, ok := m.layout.lookup(addr); {
	case addr >= m.layout.Size || m.layout.Size-addr < m.layout.WordSize:
		ex.Cause = fault.CauseBusError
	case addr%m.layout.WordSize != 0:
		ex.Cause = fault.CauseAddressError
	case !ok:
		ex.Cause = fault.CausePageFault
	case write && r.ReadOnly:
		ex.Cause = fault.CauseReadOnly
	default:
		return nil
	}
	return ex
}

// LoadWord reads the little-endian word at addr.
func (m *Memory) LoadWord(addr uint32) (int32, *fault.Exception) {
	if ex := m.Check(addr, false); ex != nil {
		return 0, ex
	}
	return int32(binary.LittleEndian.Uint32(m.bytes[addr:])), nil
}

// StoreWord writes v at addr.
func (m *Memory) StoreWord(addr uint32, v int32) *fault.Exception {
	if ex := m.Check(addr, true); ex != nil {
		return ex
	}
	binary.LittleEndian.PutUint32(m.bytes[addr:], uint32(v))
	return nil
}

// span returns how many bytes starting at vaddr lie in one mapped region.
func (m *Memory) span(vaddr uint32, writable bool) int {
	r, ok := m.layout.lookup(vaddr)
	if !ok || (writable && r.ReadOnly) {
		return 0
	}
	return int(r.End - vaddr)
}

// ReadAt copies memory at vaddr into p without faulting and returns the
// number of bytes copied, which stops at the first unmapped byte.
func (m *Memory) ReadAt(vaddr uint32, p []byte) int {
	n := 0
	for n < len(p) {
		addr := uint64(vaddr) + uint64(n)
		if addr > math.MaxUint32 {
			break
		}
		k := m.span(uint32(addr), false)
		if k == 0 {
			break
		}
		n += copy(p[n:], m.bytes[addr:addr+uint64(k)])
	}
	return n
}

// WriteAt is the writing counterpart of ReadAt. Kernel writes into
// read-only regions are refused like user writes.
func (m *Memory) WriteAt(vaddr uint32, p []byte) int {
	n := 0
	for n < len(p) {
		addr := uint64(vaddr) + uint64(n)
		if addr > math.MaxUint32 {
			break
		}
		k := m.span(uint32(addr), true)
		if k == 0 {
			break
		}
		n += copy(m.bytes[addr:addr+uint64(k)], p[n:])
	}
	return n
}

// Span returns how many of the n bytes at vaddr a transfer could reach,
// reading or, with write, writing.
func (m *Memory) Span(vaddr uint32, n int, write bool) int {
	got := 0
	for got < n {
		addr := uint64(vaddr) + uint64(got)
		if addr > math.MaxUint32 {
			break
		}
		k := m.span(uint32(addr), write)
		if k == 0 {
			break
		}
		got += k
	}
	if got > n {
		got = n
	}
	return got
}

// ReadString reads a NUL-terminated string of at most max bytes.
func (m *Memory) ReadString(vaddr uint32, max int) (string, bool) {
	buf := make([]byte, max+1)
	n := m.ReadAt(vaddr, buf)
	if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
		return string(buf[:i]), true
	}
	return "", false
}

// Div is the processor's signed word division.
func Div(a, b int32) (int32, *fault.Exception) {
	switch {
	case b == 0:
		return 0, &fault.Exception{Cause: fault.CauseDivideByZero}
	case a == math.MinInt32 && b == -1:
		return 0, &fault.Exception{Cause: fault.CauseOverflow}
	}
	return a / b, nil
}
