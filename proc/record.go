package proc

import "sort"

// Cmd identifies a program run.
type Cmd struct {
	Path string
	Args []string

	ID     int // pid
	Parent int // parent pid, 0 for the root
}

// Record is the accounting entry emitted when a process terminates.
type Record struct {
	Cmd     Cmd
	Inputs  []string
	Outputs []string
	Status  int
	Cause   string `json:",omitempty"`
}

type nameSet struct {
	Has map[string]bool
}

func newNameSet() nameSet {
	return nameSet{Has: map[string]bool{}}
}

func (ss *nameSet) Add(x string) {
	ss.Has[x] = true
}

func (ss *nameSet) Sorted() []string {
	names := make([]string, 0, len(ss.Has))
	for name := range ss.Has {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Process) record() Record {
	r := Record{
		Cmd:     p.cmd,
		Inputs:  p.inputs.Sorted(),
		Outputs: p.outputs.Sorted(),
		Status:  p.exit.Status,
	}
	if p.exit.Cause != nil {
		r.Cause = p.exit.Cause.Error()
	}
	return r
}
