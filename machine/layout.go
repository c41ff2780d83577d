// Package machine is the execution substrate user processes run on: a
// flat, byte-addressable memory per process and an arithmetic unit, both
// of which raise fault.Exception instead of crashing the host.
package machine

import "fmt"

// Region is a mapped, half-open address range [Start, End).
type Region struct {
	Name     string `yaml:"name"`
	Start    uint32 `yaml:"start"`
	End      uint32 `yaml:"end"`
	ReadOnly bool   `yaml:"read_only"`
}

func (r Region) contains(addr uint32) bool {
	return addr >= r.Start && addr < r.End
}

// Layout describes a process address space. Addresses at or above Size
// are off the bus; addresses below Size but outside every region are
// addressable yet unmapped.
type Layout struct {
	Size     uint32   `yaml:"size"`
	WordSize uint32   `yaml:"word_size"`
	Regions  []Region `yaml:"regions"`
}

const pageSize = 0x400

// DefaultLayout leaves page 0 unmapped so that null dereferences fault.
func DefaultLayout() Layout {
	return Layout{
		Size:     0x10000,
		WordSize: 4,
		Regions: []Region{
			{Name: "text", Start: pageSize, End: 0x2000, ReadOnly: true},
			{Name: "data", Start: 0x2000, End: 0x8000},
			{Name: "stack", Start: 0x8000, End: 0xC000},
		},
	}
}

// Validate reports a layout whose regions overlap, are empty, are not
// word aligned or lie off the bus.
func (l Layout) Validate() error {
	if l.Size == 0 {
		return fmt.Errorf("machine: bad memory size %d", l.Size)
	}
	if l.WordSize == 0 || l.WordSize&(l.WordSize-1) != 0 {
		return fmt.Errorf("machine: word size %d is not a power of two", l.WordSize)
	}
	for i, r := range l.Regions {
		if r.Start >= r.End || r.End > l.Size {
			return fmt.Errorf("machine: region %q [%#x,%#x) out of bounds", r.Name, r.Start, r.End)
		}
		if r.Start%l.WordSize != 0 || r.End%l.WordSize != 0 {
			return fmt.Errorf("machine: region %q [%#x,%#x) not aligned to %d-byte words", r.Name, r.Start, r.End, l.WordSize)
		}
		for _, o := range l.Regions[:i] {
			if r.Start < o.End && o.Start < r.End {
				return fmt.Errorf("machine: region %q overlaps %q", r.Name, o.Name)
			}
		}
	}
	return nil
}

// Region returns the region called name.
func (l Layout) Region(name string) (Region, bool) {
	for _, r := range l.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Scratch is the first writable region, preferring one named "data".
func (l Layout) Scratch() (Region, bool) {
	if r, ok := l.Region("data"); ok && !r.ReadOnly {
		return r, true
	}
	for _, r := range l.Regions {
		if !r.ReadOnly {
			return r, true
		}
	}
	return Region{}, false
}

func (l Layout) lookup(addr uint32) (Region, bool) {
	for _, r := range l.Regions {
		if r.contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}
