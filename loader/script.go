package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/orivej/ukern/fault"
	"github.com/orivej/ukern/machine"
	"github.com/orivej/ukern/proc"
	"github.com/orivej/ukern/syscalls"
	"golang.org/x/sys/unix"
)

// A script is a straight-line program, one statement per line:
//
//	# comment
//	$fd = creat out.txt
//	write $fd "hello, world\n"
//	$n = read $fd 16 $data
//	$pid = exec child $1 two
//	join $pid $status
//	exit $status
//
// Arguments are bare words, double-quoted Go strings or $references:
// $0 is the program name, $1… its arguments, $# their count, and any
// other name a variable assigned on an earlier line. Every statement
// yields an integer, which "$var =" stores. read and join take an
// optional trailing variable that receives the data read or the child's
// exit status.

type arg struct {
	text string
	ref  bool // text names a variable
}

type stmt struct {
	line int
	dst  string
	op   string
	args []arg
	out  string // variable set by read and join
}

type op struct {
	min, max int
	out      bool // takes an optional output variable after max
	run      func(f *frame, s stmt) int
}

var ops map[string]op

func init() {
	ops = map[string]op{
		"print":   {0, -1, false, (*frame).print},
		"creat":   {1, 1, false, named(syscalls.SYS_CREAT)},
		"open":    {1, 1, false, named(syscalls.SYS_OPEN)},
		"unlink":  {1, 1, false, named(syscalls.SYS_UNLINK)},
		"read":    {2, 2, true, (*frame).read},
		"write":   {2, 2, false, (*frame).write},
		"close":   {1, 1, false, (*frame).close},
		"exec":    {1, 1 + syscalls.MaxArgs, false, (*frame).exec},
		"join":    {1, 1, true, (*frame).join},
		"exit":    {0, 1, false, (*frame).exit},
		"halt":    {0, 0, false, (*frame).halt},
		"syscall": {1, 5, false, (*frame).syscall},
		"load":    {1, 1, false, (*frame).load},
		"store":   {2, 2, false, (*frame).store},
		"div":     {2, 2, false, (*frame).div},
	}
}

// Script is a parsed program image.
type Script struct {
	Name  string
	stmts []stmt
}

// Parse reads a script. Variables must be assigned before use.
func Parse(name string, r io.Reader) (*Script, error) {
	s := &Script{Name: name}
	defined := map[string]bool{}
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		st, err := parseLine(sc.Text(), defined)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", name, line, err)
		}
		if st.op == "" {
			continue
		}
		st.line = line
		s.stmts = append(s.stmts, st)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}
	return s, nil
}

func parseLine(line string, defined map[string]bool) (stmt, error) {
	var st stmt
	toks, err := lex(line)
	if err != nil || len(toks) == 0 {
		return st, err
	}
	if len(toks) >= 2 && toks[0].ref && toks[1] == (arg{text: "="}) {
		if !isIdent(toks[0].text) {
			return st, fmt.Errorf("cannot assign to $%s", toks[0].text)
		}
		st.dst = toks[0].text
		toks = toks[2:]
	}
	if len(toks) == 0 || toks[0].ref {
		return st, fmt.Errorf("missing operation")
	}
	st.op, st.args = toks[0].text, toks[1:]
	o, ok := ops[st.op]
	if !ok {
		return st, fmt.Errorf("unknown operation %q", st.op)
	}
	if o.out && len(st.args) == o.max+1 {
		out := st.args[o.max]
		if !out.ref || !isIdent(out.text) {
			return st, fmt.Errorf("%s: %q is not a variable", st.op, out.text)
		}
		st.out, st.args = out.text, st.args[:o.max]
	}
	if len(st.args) < o.min || (o.max >= 0 && len(st.args) > o.max) {
		return st, fmt.Errorf("%s: wrong number of arguments", st.op)
	}
	for _, a := range st.args {
		if a.ref && isIdent(a.text) && !defined[a.text] {
			return st, fmt.Errorf("undefined variable $%s", a.text)
		}
	}
	if st.dst != "" {
		defined[st.dst] = true
	}
	if st.out != "" {
		defined[st.out] = true
	}
	return st, nil
}

func lex(line string) ([]arg, error) {
	var toks []arg
	for pos := 0; pos < len(line); {
		switch c := line[pos]; {
		case isSpace(c):
			pos++
		case c == '#':
			return toks, nil
		case c == '"':
			q, err := strconv.QuotedPrefix(line[pos:])
			if err != nil {
				return nil, fmt.Errorf("bad string at column %d", pos+1)
			}
			s, err := strconv.Unquote(q)
			if err != nil {
				return nil, err
			}
			toks = append(toks, arg{text: s})
			pos += len(q)
		default:
			end := pos
			for end < len(line) && !isSpace(line[end]) {
				end++
			}
			w := line[pos:end]
			pos = end
			if w[0] != '$' {
				toks = append(toks, arg{text: w})
				continue
			}
			name := w[1:]
			if name != "#" && !isPositional(name) && !isIdent(name) {
				return nil, fmt.Errorf("bad variable %q", w)
			}
			toks = append(toks, arg{text: name, ref: true})
		}
	}
	return toks, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isPositional(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Run executes the script as process p.
func (s *Script) Run(p *proc.Process, args []string) int {
	f := &frame{p: p, name: s.Name, args: args, vars: map[string]string{}}
	f.scratch, f.hasScratch = p.Memory().Layout().Scratch()
	for _, st := range s.stmts {
		f.st = st
		f.next = f.scratch.Start
		v := ops[st.op].run(f, st)
		if st.dst != "" {
			f.vars[st.dst] = strconv.Itoa(v)
		}
	}
	return 0
}

type frame struct {
	p    *proc.Process
	name string
	args []string
	vars map[string]string
	st   stmt

	scratch    machine.Region
	hasScratch bool
	next       uint32 // staging cursor, reset for every statement
}

func (f *frame) value(a arg) string {
	switch {
	case !a.ref:
		return a.text
	case a.text == "#":
		return strconv.Itoa(len(f.args))
	case isPositional(a.text):
		i, _ := strconv.Atoi(a.text)
		if i == 0 {
			return f.name
		}
		if i <= len(f.args) {
			return f.args[i-1]
		}
		return ""
	}
	return f.vars[a.text]
}

// word converts an argument to a machine word. A non-numeric operand is
// an illegal instruction.
func (f *frame) word(a arg) uint32 {
	s := f.value(a)
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
		f.p.Kill(fault.SignalStatus(unix.SIGILL), fmt.Errorf("%s:%d: %s: bad operand %q", f.name, f.st.line, f.st.op, s))
	}
	return uint32(v)
}

// stage copies b into the scratch region and returns its address, or 0
// when it does not fit.
func (f *frame) stage(b []byte) uint32 {
	addr := (f.next + 3) &^ 3
	if !f.hasScratch || uint64(addr)+uint64(len(b)) > uint64(f.scratch.End) {
		return 0
	}
	f.p.Memory().WriteAt(addr, b)
	f.next = addr + uint32(len(b))
	return addr
}

func (f *frame) stageString(s string) uint32 {
	return f.stage(append([]byte(s), 0))
}

func (f *frame) print(s stmt) int {
	parts := make([]string, len(s.args))
	for i, a := range s.args {
		parts[i] = f.value(a)
	}
	line := strings.Join(parts, " ") + "\n"
	return syscalls.Syscall(f.p, syscalls.SYS_WRITE, 1, f.stage([]byte(line)), uint32(len(line)))
}

func named(num int) func(f *frame, s stmt) int {
	return func(f *frame, s stmt) int {
		return syscalls.Syscall(f.p, num, f.stageString(f.value(s.args[0])))
	}
}

func (f *frame) read(s stmt) int {
	fd, count := f.word(s.args[0]), f.word(s.args[1])
	if int32(count) < 0 || uint64(count) > uint64(f.scratch.End-f.scratch.Start) {
		return -1
	}
	buf := f.stage(make([]byte, count))
	if buf == 0 {
		return -1
	}
	n := syscalls.Syscall(f.p, syscalls.SYS_READ, fd, buf, count)
	if s.out != "" && n >= 0 {
		data := make([]byte, n)
		f.p.Memory().ReadAt(buf, data)
		f.vars[s.out] = string(data)
	}
	return n
}

func (f *frame) write(s stmt) int {
	fd, data := f.word(s.args[0]), f.value(s.args[1])
	return syscalls.Syscall(f.p, syscalls.SYS_WRITE, fd, f.stage([]byte(data)), uint32(len(data)))
}

func (f *frame) close(s stmt) int {
	return syscalls.Syscall(f.p, syscalls.SYS_CLOSE, f.word(s.args[0]))
}

func (f *frame) exec(s stmt) int {
	path := f.stageString(f.value(s.args[0]))
	argv := make([]byte, 4*(len(s.args)-1))
	for i, a := range s.args[1:] {
		binary.LittleEndian.PutUint32(argv[4*i:], f.stageString(f.value(a)))
	}
	return syscalls.Syscall(f.p, syscalls.SYS_EXEC, path, uint32(len(s.args)-1), f.stage(argv))
}

func (f *frame) join(s stmt) int {
	status := f.stage(make([]byte, 4))
	code := syscalls.Syscall(f.p, syscalls.SYS_JOIN, f.word(s.args[0]), status)
	if s.out != "" && code != syscalls.JoinNoSuchChild {
		v, _ := f.p.Memory().LoadWord(status)
		f.vars[s.out] = strconv.Itoa(int(v))
	}
	return code
}

func (f *frame) exit(s stmt) int {
	var status uint32
	if len(s.args) > 0 {
		status = f.word(s.args[0])
	}
	return syscalls.Syscall(f.p, syscalls.SYS_EXIT, status)
}

func (f *frame) halt(stmt) int {
	return syscalls.Syscall(f.p, syscalls.SYS_HALT)
}

func (f *frame) syscall(s stmt) int {
	num := int(int32(f.word(s.args[0])))
	args := make([]uint32, len(s.args)-1)
	for i, a := range s.args[1:] {
		args[i] = f.word(a)
	}
	return syscalls.Syscall(f.p, num, args...)
}

func (f *frame) load(s stmt) int {
	return int(f.p.Load(f.word(s.args[0])))
}

func (f *frame) store(s stmt) int {
	f.p.Store(f.word(s.args[0]), int32(f.word(s.args[1])))
	return 0
}

func (f *frame) div(s stmt) int {
	return int(f.p.Div(int32(f.word(s.args[0])), int32(f.word(s.args[1]))))
}
