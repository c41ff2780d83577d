package main

import (
	"flag"
	"strings"
)

// ModuleSet collects logging module names from a flag given repeatedly
// or as a comma separated list.
type ModuleSet struct {
	Slice []string
	Has   map[string]bool
}

func NewModuleSet() ModuleSet {
	return ModuleSet{
		Slice: []string{},
		Has:   map[string]bool{},
	}
}

func (ms *ModuleSet) Add(module string) {
	if module != "" && !ms.Has[module] {
		ms.Slice = append(ms.Slice, module)
		ms.Has[module] = true
	}
}

func (ms *ModuleSet) String() string {
	return strings.Join(ms.Slice, ",")
}

func (ms *ModuleSet) Set(x string) error {
	for _, module := range strings.Split(x, ",") {
		ms.Add(strings.TrimSpace(module))
	}
	return nil
}

func ModuleSetFlag(name, usage string) *ModuleSet {
	ms := NewModuleSet()
	flag.Var(&ms, name, usage)
	return &ms
}
