package proc

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/djmitche/shquote"
	"github.com/orivej/ukern/fault"
	"github.com/orivej/ukern/fd"
	"github.com/orivej/ukern/machine"
	"golang.org/x/sys/unix"
)

type State int

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "running"
}

// Exit is how a process terminated. Cause is nil when the process exited
// on its own, a *fault.Fault when a hardware fault killed it, or one of
// the Err values of this package.
type Exit struct {
	Status int
	Cause  error
}

func (e Exit) Normal() bool {
	return e.Cause == nil
}

func (e Exit) outcome() string {
	var f *fault.Fault
	switch {
	case e.Cause == nil:
		return "exited"
	case errors.As(e.Cause, &f):
		return "faulted"
	}
	return "killed"
}

// Process is a user process. Its methods are the system calls and must
// only be called from the process's own program.
type Process struct {
	k    *Kernel
	pid  int
	ppid int // 0 when parentless
	cmd  Cmd

	state State
	exit  Exit

	fds      *fd.Table
	mem      *machine.Memory
	children PIDSet // spawned and not yet joined
	inputs   nameSet
	outputs  nameSet

	done  chan struct{} // closed on termination
	onCPU bool
}

func (p *Process) PID() int {
	return p.pid
}

// Parent returns the parent pid, or false if the process has none.
func (p *Process) Parent() (int, bool) {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.ppid, p.ppid != 0
}

func (p *Process) Name() string {
	return p.cmd.Path
}

func (p *Process) Args() []string {
	return p.cmd.Args
}

// Memory is the process's address space.
func (p *Process) Memory() *machine.Memory {
	return p.mem
}

// Exec loads name and starts it as a child of p.
func (p *Process) Exec(name string, args []string) (int, error) {
	k := p.k
	prog, err := k.cfg.Loader.Load(name)
	if err != nil {
		log.Debugf("%d exec %s: %s", p.pid, name, err)
		return -1, err
	}
	child, err := k.spawn(p, name, args)
	if err != nil {
		log.Debugf("%d exec %s: %s", p.pid, name, err)
		return -1, err
	}
	log.Debugf("%d exec %d %s", p.pid, child.pid, shquote.QuoteList(append([]string{name}, args...)))
	k.launch(child, prog)
	return child.pid, nil
}

// Join waits for the child pid to terminate, reaps it and returns how it
// terminated. It fails at once with ECHILD unless pid is an unjoined
// child of p.
func (p *Process) Join(pid int) (Exit, error) {
	k := p.k
	k.mu.Lock()
	if !p.children.Has[pid] {
		k.mu.Unlock()
		return Exit{}, unix.ECHILD
	}
	child := k.procs[pid]
	k.mu.Unlock()

	select {
	case <-child.done:
	default:
		k.release(p)
		select {
		case <-child.done:
		case <-k.haltCh:
		}
		k.acquire(p)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	p.children.Remove(pid)
	delete(k.procs, pid)
	log.Debugf("%d joined %d, status %d", p.pid, pid, child.exit.Status)
	return child.exit, nil
}

// Exit terminates p with status. It does not return.
func (p *Process) Exit(status int) {
	p.terminate(Exit{Status: status})
	runtime.Goexit()
}

// Halt stops the machine. Only the root process may halt; any other
// caller is killed.
func (p *Process) Halt() {
	k := p.k
	k.mu.Lock()
	isRoot := p == k.root
	if isRoot {
		k.halted = true
		k.haltedBy = p.pid
	}
	k.mu.Unlock()
	if !isRoot {
		p.Kill(fault.SignalStatus(unix.SIGSYS), ErrIllegalHalt)
	}

	log.Noticef("machine halted by process %d", p.pid)
	close(k.haltCh)
	p.terminate(Exit{})
	k.stop()
	runtime.Goexit()
}

// Raise delivers an exception from the execution substrate. Faults kill
// p before Raise returns to it.
func (p *Process) Raise(ex fault.Exception) {
	f, err := fault.Classify(ex)
	switch {
	case errors.Is(err, fault.ErrNotFault):
		return
	case err != nil:
		p.Kill(fault.SignalStatus(unix.SIGILL), err)
	}
	p.k.metrics.Faults.WithLabelValues(f.Kind.String()).Inc()
	p.Kill(f.Kind.Status(), &f)
}

// Kill terminates p abnormally after reporting cause on the console.
func (p *Process) Kill(status int, cause error) {
	if out := p.k.cfg.Console.Out; out != nil {
		fmt.Fprintf(out, "process %d (%s) terminated: %s\n", p.pid, p.cmd.Path, cause)
	}
	log.Warningf("%d killed: %s", p.pid, cause)
	p.terminate(Exit{Status: status, Cause: cause})
	runtime.Goexit()
}

// terminate releases everything p holds and makes its status available
// to its parent, or discards it if there is none.
func (p *Process) terminate(ex Exit) {
	k := p.k
	p.fds.CloseAll()

	k.mu.Lock()
	p.state = Terminated
	p.exit = ex
	for _, pid := range p.children.Slice {
		c := k.procs[pid]
		c.ppid = 0
		if c.state == Terminated {
			delete(k.procs, pid)
		}
	}
	p.children = NewPIDSet()
	if p.ppid == 0 {
		delete(k.procs, p.pid)
	}
	k.running--
	last := k.running == 0
	k.mu.Unlock()

	close(p.done)
	k.metrics.Running.Dec()
	k.metrics.Exits.WithLabelValues(ex.outcome()).Inc()
	log.Debugf("%d terminated, status %d", p.pid, ex.Status)
	if k.cfg.OnExit != nil {
		k.cfg.OnExit(p.record())
	}
	if last {
		k.stop()
	}
}

// Load reads the word at addr.
func (p *Process) Load(addr uint32) int32 {
	v, ex := p.mem.LoadWord(addr)
	if ex != nil {
		p.Raise(*ex)
	}
	return v
}

// Store writes v at addr.
func (p *Process) Store(addr uint32, v int32) {
	if ex := p.mem.StoreWord(addr, v); ex != nil {
		p.Raise(*ex)
	}
}

// Div divides on the processor.
func (p *Process) Div(a, b int32) int32 {
	q, ex := machine.Div(a, b)
	if ex != nil {
		p.Raise(*ex)
	}
	return q
}
