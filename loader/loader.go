// Package loader resolves program names to runnable images for the
// process manager.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kardianos/osext"
	"github.com/op/go-logging"
	"github.com/orivej/e"
	"github.com/orivej/ukern/proc"
	"golang.org/x/sys/unix"
)

var (
	log = logging.MustGetLogger("loader")
)

// Registry holds programs compiled into the kernel binary.
type Registry struct {
	mu    sync.RWMutex
	progs map[string]proc.Program
}

func NewRegistry() *Registry {
	return &Registry{progs: make(map[string]proc.Program)}
}

// Register adds prog under name, replacing any earlier registration.
func (r *Registry) Register(name string, prog proc.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progs[name] = prog
}

func (r *Registry) Load(name string) (proc.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prog, ok := r.progs[name]
	if !ok {
		return nil, unix.ENOENT
	}
	return prog, nil
}

// Names lists the registered programs in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.progs))
	for name := range r.progs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain consults each loader in turn until one knows the name.
type Chain []proc.Loader

func (c Chain) Load(name string) (proc.Program, error) {
	for _, l := range c {
		prog, err := l.Load(name)
		if !errors.Is(err, unix.ENOENT) {
			return prog, err
		}
	}
	return nil, unix.ENOENT
}

// Dir loads program scripts from a directory.
type Dir struct {
	Path string
}

// NewDir returns a Dir over path, or over the folder holding the running
// executable when path is empty.
func NewDir(path string) (*Dir, error) {
	if path == "" {
		folder, err := osext.ExecutableFolder()
		if err != nil {
			return nil, err
		}
		path = folder
	}
	return &Dir{Path: path}, nil
}

func (d *Dir) Load(name string) (proc.Program, error) {
	if name == "" || strings.ContainsRune(name, '/') {
		return nil, unix.ENOENT
	}
	f, err := os.Open(filepath.Join(d.Path, name))
	if os.IsNotExist(err) {
		return nil, unix.ENOENT
	}
	if err != nil {
		return nil, err
	}
	defer e.CloseOrPrint(f)

	s, err := Parse(name, f)
	if err != nil {
		log.Warning(err)
		return nil, fmt.Errorf("%v: %w", err, unix.ENOEXEC)
	}
	log.Debugf("loaded %s from %s: %d statements", name, d.Path, len(s.stmts))
	return s.Run, nil
}
