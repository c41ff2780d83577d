package syscalls

import (
	"encoding/binary"

	"github.com/op/go-logging"
	"github.com/orivej/ukern/fault"
	"github.com/orivej/ukern/proc"
	"golang.org/x/sys/unix"
)

var (
	log = logging.MustGetLogger("syscalls")
)

// Dispatch services the trap described by regs on behalf of p and stores
// the result in regs.Ret. Calls that end the process do not return.
func Dispatch(p *proc.Process, regs *Regs) {
	regs.Ret = dispatch(p, regs)
	log.Debugf("%d %s(%d, %d, %d) = %d", p.PID(), name(regs.Syscall), regs.Arg0, regs.Arg1, regs.Arg2, regs.Ret)
}

// Syscall is Dispatch for callers holding plain values.
func Syscall(p *proc.Process, num int, args ...uint32) int {
	regs := Regs{Syscall: num}
	for i, a := range args {
		switch i {
		case 0:
			regs.Arg0 = a
		case 1:
			regs.Arg1 = a
		case 2:
			regs.Arg2 = a
		case 3:
			regs.Arg3 = a
		}
	}
	Dispatch(p, &regs)
	return regs.Ret
}

func name(num int) string {
	if s, ok := Names[num]; ok {
		return s
	}
	return "unknown"
}

func dispatch(p *proc.Process, regs *Regs) int {
	mem := p.Memory()
	switch regs.Syscall {
	case SYS_HALT:
		p.Halt()
	case SYS_EXIT:
		p.Exit(int(int32(regs.Arg0)))
	case SYS_EXEC:
		return handleExec(p, regs.Arg0, int(int32(regs.Arg1)), regs.Arg2)
	case SYS_JOIN:
		return handleJoin(p, int(int32(regs.Arg0)), regs.Arg1)
	case SYS_CREAT, SYS_OPEN:
		name, ok := mem.ReadString(regs.Arg0, MaxString)
		if !ok {
			return -1
		}
		open := p.Open
		if regs.Syscall == SYS_CREAT {
			open = p.Creat
		}
		return ret(open(name))
	case SYS_READ:
		fd, count := int(int32(regs.Arg0)), int(int32(regs.Arg2))
		if !p.FDs().Valid(fd) || count < 0 {
			return -1
		}
		// Never take more from the file than the buffer can hold.
		n := mem.Span(regs.Arg1, count, true)
		if n == 0 && count > 0 {
			return -1
		}
		buf := make([]byte, n)
		n, err := p.Read(fd, buf)
		if err != nil {
			return -1
		}
		return mem.WriteAt(regs.Arg1, buf[:n])
	case SYS_WRITE:
		fd, count := int(int32(regs.Arg0)), int(int32(regs.Arg2))
		if !p.FDs().Valid(fd) || count < 0 || mem.Span(regs.Arg1, count, false) < count {
			return -1
		}
		buf := make([]byte, count)
		mem.ReadAt(regs.Arg1, buf)
		return ret(p.Write(fd, buf))
	case SYS_CLOSE:
		return ret(0, p.Close(int(int32(regs.Arg0))))
	case SYS_UNLINK:
		name, ok := mem.ReadString(regs.Arg0, MaxString)
		if !ok {
			return -1
		}
		return ret(0, p.Unlink(name))
	default:
		p.Kill(fault.SignalStatus(unix.SIGSYS), proc.ErrBadSyscall)
	}
	return -1
}

func ret(v int, err error) int {
	if err != nil {
		return -1
	}
	return v
}

func handleExec(p *proc.Process, path uint32, argc int, argv uint32) int {
	mem := p.Memory()
	name, ok := mem.ReadString(path, MaxString)
	if !ok || argc < 0 || argc > MaxArgs {
		return -1
	}
	args := make([]string, argc)
	ptr := make([]byte, 4)
	for i := range args {
		if mem.ReadAt(argv+uint32(4*i), ptr) != 4 {
			return -1
		}
		arg, ok := mem.ReadString(binary.LittleEndian.Uint32(ptr), MaxString)
		if !ok {
			return -1
		}
		args[i] = arg
	}
	return ret(p.Exec(name, args))
}

// handleJoin refuses a status pointer it could not write through before
// reaping, so the child stays joinable.
func handleJoin(p *proc.Process, pid int, status uint32) int {
	if status != 0 && p.Memory().Span(status, 4, true) < 4 {
		return JoinNoSuchChild
	}
	exit, err := p.Join(pid)
	if err != nil {
		return JoinNoSuchChild
	}
	if status != 0 {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(exit.Status)))
		p.Memory().WriteAt(status, buf)
	}
	if !exit.Normal() {
		return JoinAbnormal
	}
	return JoinExited
}
