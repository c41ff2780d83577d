// Package fault turns raw processor exceptions into the closed set of
// fault kinds that terminate a user process.
package fault

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Cause is the raw exception code reported by the processor.
type Cause int

const (
	CauseSyscall Cause = iota
	CausePageFault
	CauseTLBMiss
	CauseReadOnly
	CauseBusError
	CauseAddressError
	CauseOverflow
	CauseIllegalInstruction
	CauseDivideByZero
)

var causeNames = [...]string{
	CauseSyscall:            "syscall",
	CausePageFault:          "page fault",
	CauseTLBMiss:            "TLB miss",
	CauseReadOnly:           "read-only",
	CauseBusError:           "bus error",
	CauseAddressError:       "address error",
	CauseOverflow:           "overflow",
	CauseIllegalInstruction: "illegal instruction",
	CauseDivideByZero:       "divide by zero",
}

func (c Cause) String() string {
	if c >= 0 && int(c) < len(causeNames) {
		return causeNames[c]
	}
	return fmt.Sprint("cause ", int(c))
}

// Kind is a classified fault.
type Kind int

const (
	IllegalMemoryAccess Kind = iota + 1
	ArithmeticFault
	BusError
)

func (k Kind) String() string {
	switch k {
	case IllegalMemoryAccess:
		return "illegal memory access"
	case ArithmeticFault:
		return "arithmetic fault"
	case BusError:
		return "bus error"
	}
	return fmt.Sprint("kind ", int(k))
}

// Signal is the host signal conventionally delivered for k.
func (k Kind) Signal() unix.Signal {
	switch k {
	case IllegalMemoryAccess:
		return unix.SIGSEGV
	case ArithmeticFault:
		return unix.SIGFPE
	case BusError:
		return unix.SIGBUS
	}
	panic(fmt.Sprint("fault: unclassified ", k))
}

// Status is the exit status of a process terminated by k.
func (k Kind) Status() int {
	return SignalStatus(k.Signal())
}

// SignalStatus maps a terminating signal to a shell-style exit status.
func SignalStatus(sig unix.Signal) int {
	return 128 + int(sig)
}

// Exception is what the execution substrate raises.
type Exception struct {
	Cause Cause
	Addr  uint32 // faulting virtual address, if any
	Write bool   // the faulting access was a store
}

// Fault is a classified exception.
type Fault struct {
	Kind Kind
	Exception
}

var (
	ErrNotFault     = errors.New("fault: exception is not a fault")
	ErrUnknownCause = errors.New("fault: unknown exception cause")
)

// Classify maps ex onto a fault kind. It keeps no state between calls.
func Classify(ex Exception) (Fault, error) {
	f := Fault{Exception: ex}
	switch ex.Cause {
	case CausePageFault, CauseTLBMiss, CauseReadOnly, CauseAddressError:
		f.Kind = IllegalMemoryAccess
	case CauseOverflow, CauseDivideByZero:
		f.Kind = ArithmeticFault
	case CauseBusError:
		f.Kind = BusError
	case CauseSyscall:
		return f, ErrNotFault
	default:
		return f, fmt.Errorf("%w: %s", ErrUnknownCause, ex.Cause)
	}
	return f, nil
}

func (f *Fault) Error() string {
	switch f.Kind {
	case ArithmeticFault:
		return fmt.Sprintf("%s (%s, %s)", f.Kind, f.Cause, unix.SignalName(f.Kind.Signal()))
	}
	access := "read"
	if f.Write {
		access = "write"
	}
	return fmt.Sprintf("%s (%s) on %s of 0x%08x (%s)",
		f.Kind, f.Cause, access, f.Addr, unix.SignalName(f.Kind.Signal()))
}
