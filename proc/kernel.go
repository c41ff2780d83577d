// Package proc is the process manager: the process table, pid
// allocation, exec/join/exit/halt and the termination of faulting
// processes.
//
// User programs run on their own goroutines but never at the same time:
// a process holds the CPU from the moment it is scheduled until it
// terminates, and gives it up only while blocked in Join.
package proc

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/orivej/ukern/fault"
	"github.com/orivej/ukern/fd"
	"github.com/orivej/ukern/machine"
	"github.com/orivej/ukern/metrics"
	"github.com/orivej/ukern/storage"
	"golang.org/x/sys/unix"
)

var (
	log = logging.MustGetLogger("proc")
)

var (
	ErrIllegalHalt = errors.New("halt called by a process other than the root")
	ErrBadSyscall  = errors.New("bad system call")
	ErrHalted      = errors.New("killed by machine halt")
	ErrKilled      = errors.New("killed")
)

// Program is a loaded executable image. Its return value is the exit
// status, as if it had called Exit.
type Program func(p *Process, args []string) int

// Loader resolves program names to images.
type Loader interface {
	Load(name string) (Program, error)
}

// Programs is a Loader over a fixed set of programs.
type Programs map[string]Program

func (ps Programs) Load(name string) (Program, error) {
	prog, ok := ps[name]
	if !ok {
		return nil, unix.ENOENT
	}
	return prog, nil
}

const (
	DefaultMaxProcs    = 64
	DefaultMaxPID      = 65535
	DefaultFDTableSize = 18
)

type Config struct {
	MaxProcs    int // process table capacity, unreaped processes included
	MaxPID      int // pids wrap back to 1 past this
	FDTableSize int // descriptor slots per process, console included
	Layout      machine.Layout

	Loader  Loader
	Files   *fd.Files
	Console fd.Console
	Metrics *metrics.Metrics

	// OnExit receives the accounting record of every terminated process.
	OnExit func(Record)
}

// Report describes how the machine stopped.
type Report struct {
	BootID   uuid.UUID
	Halted   bool // stopped by the root calling halt
	HaltedBy int
	Root     Exit
}

// Kernel is the state of one booted machine.
type Kernel struct {
	cfg     Config
	bootID  uuid.UUID
	files   *fd.Files
	metrics *metrics.Metrics

	mu       sync.Mutex // guards the fields below
	procs    map[int]*Process
	nextPID  int
	running  int
	root     *Process
	halted   bool
	haltedBy int

	haltCh   chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpu sync.Mutex // the single hardware thread
}

// Boot initializes a machine. Nothing runs until Start.
func Boot(cfg Config) (*Kernel, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("proc: no loader")
	}
	if cfg.MaxProcs <= 0 {
		cfg.MaxProcs = DefaultMaxProcs
	}
	if cfg.MaxPID <= 0 {
		cfg.MaxPID = DefaultMaxPID
	}
	if cfg.MaxPID < cfg.MaxProcs {
		return nil, fmt.Errorf("proc: max pid %d below process table size %d", cfg.MaxPID, cfg.MaxProcs)
	}
	if cfg.FDTableSize <= 0 {
		cfg.FDTableSize = DefaultFDTableSize
	}
	if cfg.Layout.Size == 0 {
		cfg.Layout = machine.DefaultLayout()
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Discard()
	}
	if cfg.Files == nil {
		cfg.Files = fd.NewFiles(storage.NewMemory(), cfg.Metrics)
	}

	k := &Kernel{
		cfg:     cfg,
		bootID:  uuid.New(),
		files:   cfg.Files,
		metrics: cfg.Metrics,
		procs:   make(map[int]*Process, cfg.MaxProcs),
		nextPID: 1,
		haltCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	log.Infof("kernel %s booted", k.bootID)
	return k, nil
}

func (k *Kernel) BootID() uuid.UUID {
	return k.bootID
}

// Files is the open file registry shared by all processes.
func (k *Kernel) Files() *fd.Files {
	return k.files
}

// Start loads and runs the root process, the only one allowed to halt.
func (k *Kernel) Start(name string, args []string) (*Process, error) {
	k.mu.Lock()
	started := k.root != nil || k.running > 0
	k.mu.Unlock()
	if started {
		return nil, unix.EBUSY
	}

	prog, err := k.cfg.Loader.Load(name)
	if err != nil {
		return nil, err
	}
	p, err := k.spawn(nil, name, args)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.root = p
	k.mu.Unlock()
	k.launch(p, prog)
	return p, nil
}

// Wait blocks until the root halts or no process is left running, and
// every process has released its resources.
func (k *Kernel) Wait() Report {
	<-k.stopped
	k.wg.Wait()

	k.mu.Lock()
	defer k.mu.Unlock()
	r := Report{BootID: k.bootID, Halted: k.halted, HaltedBy: k.haltedBy}
	if k.root != nil {
		r.Root = k.root.exit
	}
	return r
}

// Lookup reports whether pid is in the process table and its state.
func (k *Kernel) Lookup(pid int) (State, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok {
		return 0, false
	}
	return p.state, true
}

func (k *Kernel) allocPID() int {
	for {
		pid := k.nextPID
		k.nextPID++
		if k.nextPID > k.cfg.MaxPID {
			k.nextPID = 1
		}
		if _, used := k.procs[pid]; !used {
			return pid
		}
	}
}

func (k *Kernel) spawn(parent *Process, name string, args []string) (*Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.procs) >= k.cfg.MaxProcs {
		return nil, unix.EAGAIN
	}
	pid := k.allocPID()
	p := &Process{
		k:        k,
		pid:      pid,
		cmd:      Cmd{Path: name, Args: args, ID: pid},
		fds:      k.files.NewTable(k.cfg.FDTableSize, k.cfg.Console),
		mem:      machine.NewMemory(k.cfg.Layout),
		children: NewPIDSet(),
		inputs:   newNameSet(),
		outputs:  newNameSet(),
		done:     make(chan struct{}),
	}
	if parent != nil {
		p.ppid = parent.pid
		p.cmd.Parent = parent.pid
		parent.children.Add(pid)
	}
	k.procs[pid] = p
	k.running++
	k.metrics.Spawned.Inc()
	k.metrics.Running.Inc()
	return p, nil
}

func (k *Kernel) launch(p *Process, prog Program) {
	k.wg.Add(1)
	go k.run(p, prog)
}

func (k *Kernel) run(p *Process, prog Program) {
	defer k.wg.Done()
	defer k.finish(p)

	k.acquire(p)
	p.Exit(prog(p, p.cmd.Args))
}

// acquire schedules p. A process scheduled after the machine halted dies
// without running any further.
func (k *Kernel) acquire(p *Process) {
	k.cpu.Lock()
	p.onCPU = true

	k.mu.Lock()
	halted := k.halted
	k.mu.Unlock()
	if halted {
		p.terminate(Exit{Status: fault.SignalStatus(unix.SIGKILL), Cause: ErrHalted})
		runtime.Goexit()
	}
}

func (k *Kernel) release(p *Process) {
	p.onCPU = false
	k.cpu.Unlock()
}

// finish runs as the process goroutine unwinds, whichever way it ends.
func (k *Kernel) finish(p *Process) {
	if !p.onCPU {
		k.cpu.Lock()
		p.onCPU = true
	}
	if p.state == Running {
		p.terminate(Exit{Status: fault.SignalStatus(unix.SIGKILL), Cause: ErrKilled})
	}
	k.release(p)
}

func (k *Kernel) stop() {
	k.stopOnce.Do(func() { close(k.stopped) })
}
