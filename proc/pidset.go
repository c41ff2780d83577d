package proc

// PIDSet is a set of pids that remembers insertion order.
type PIDSet struct {
	Slice []int
	Has   map[int]bool
}

func NewPIDSet() PIDSet {
	return PIDSet{
		Slice: []int{},
		Has:   map[int]bool{},
	}
}

func (ss *PIDSet) Add(x int) {
	if !ss.Has[x] {
		ss.Slice = append(ss.Slice, x)
		ss.Has[x] = true
	}
}

func (ss *PIDSet) Remove(x int) {
	if !ss.Has[x] {
		return
	}
	delete(ss.Has, x)
	for i, y := range ss.Slice {
		if y == x {
			ss.Slice = append(ss.Slice[:i], ss.Slice[i+1:]...)
			break
		}
	}
}
