// Package syscalls is the user/kernel boundary: syscall numbers and the
// marshalling of arguments out of process memory.
package syscalls

const (
	SYS_HALT   = 0
	SYS_EXIT   = 1
	SYS_EXEC   = 2
	SYS_JOIN   = 3
	SYS_CREAT  = 4
	SYS_OPEN   = 5
	SYS_READ   = 6
	SYS_WRITE  = 7
	SYS_CLOSE  = 8
	SYS_UNLINK = 9

	// longest string argument, without its NUL
	MaxString = 256
	// most arguments exec passes on
	MaxArgs = 16
)

var Names = map[int]string{
	SYS_HALT:   "halt",
	SYS_EXIT:   "exit",
	SYS_EXEC:   "exec",
	SYS_JOIN:   "join",
	SYS_CREAT:  "creat",
	SYS_OPEN:   "open",
	SYS_READ:   "read",
	SYS_WRITE:  "write",
	SYS_CLOSE:  "close",
	SYS_UNLINK: "unlink",
}

// Join completion codes.
const (
	JoinNoSuchChild = -1
	JoinAbnormal    = 0
	JoinExited      = 1
)

// Regs are the registers a syscall trap carries.
type Regs struct {
	Syscall int
	Arg0    uint32
	Arg1    uint32
	Arg2    uint32
	Arg3    uint32
	Ret     int
}
