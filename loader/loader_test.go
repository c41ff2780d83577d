package loader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/orivej/ukern/fd"
	"github.com/orivej/ukern/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func writeScripts(t *testing.T, scripts map[string]string) *Dir {
	dir := t.TempDir()
	for name, body := range scripts {
		err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644)
		require.NoError(t, err)
	}
	d, err := NewDir(dir)
	require.NoError(t, err)
	return d
}

func runScripts(t *testing.T, scripts map[string]string, root string, args ...string) (proc.Report, string) {
	console := &bytes.Buffer{}
	k, err := proc.Boot(proc.Config{
		Loader:  writeScripts(t, scripts),
		Console: fd.Console{In: strings.NewReader(""), Out: console},
	})
	require.NoError(t, err)
	_, err = k.Start(root, args)
	require.NoError(t, err)

	ch := make(chan proc.Report, 1)
	go func() { ch <- k.Wait() }()
	select {
	case r := <-ch:
		return r, console.String()
	case <-time.After(5 * time.Second):
		t.Fatal("machine did not stop")
	}
	return proc.Report{}, ""
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(*proc.Process, []string) int { return 0 })
	r.Register("a", func(*proc.Process, []string) int { return 0 })
	assert.Equal(t, []string{"a", "b"}, r.Names())

	prog, err := r.Load("a")
	assert.NoError(t, err)
	assert.NotNil(t, prog)
	_, err = r.Load("c")
	assert.Equal(t, unix.ENOENT, err)
}

func TestChain(t *testing.T) {
	r := NewRegistry()
	r.Register("builtin", func(*proc.Process, []string) int { return 0 })
	d := writeScripts(t, map[string]string{"script": "exit 3\n", "broken": "frobnicate\n"})
	c := Chain{r, d}

	_, err := c.Load("builtin")
	assert.NoError(t, err)
	_, err = c.Load("script")
	assert.NoError(t, err)
	_, err = c.Load("broken")
	assert.True(t, errors.Is(err, unix.ENOEXEC))
	_, err = c.Load("nothing")
	assert.Equal(t, unix.ENOENT, err)
}

func TestDirRejects(t *testing.T) {
	d := writeScripts(t, map[string]string{"ok": "exit\n"})
	for _, name := range []string{"", "missing", "../ok", "sub/ok"} {
		_, err := d.Load(name)
		assert.Equal(t, unix.ENOENT, err, name)
	}
}

func TestDefaultDir(t *testing.T) {
	d, err := NewDir("")
	require.NoError(t, err)
	assert.NotEmpty(t, d.Path)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"frobnicate",
		"print $undefined",
		"close",
		"close 1 2",
		"halt now",
		`print "unterminated`,
		"$1 = open a",
		"= open a",
		"$x =",
		"read 0 4 data",
		"join 2 $1",
		"print $-",
	} {
		_, err := Parse("t", strings.NewReader(src))
		assert.Error(t, err, src)
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("t", strings.NewReader(`
# header
$fd = creat "a file"  # trailing
$n = read $fd 4 $data
print $n $data $0 $1 $# a#b
join 2 $status
print $status
`))
	require.NoError(t, err)
	require.Len(t, s.stmts, 5)
	assert.Equal(t, "fd", s.stmts[0].dst)
	assert.Equal(t, []arg{{text: "a file"}}, s.stmts[0].args)
	assert.Equal(t, 3, s.stmts[0].line)
	assert.Equal(t, "data", s.stmts[1].out)
	assert.Len(t, s.stmts[2].args, 6)
	assert.Equal(t, arg{text: "a#b"}, s.stmts[2].args[5])
	assert.Equal(t, "status", s.stmts[3].out)
}

func TestEcho(t *testing.T) {
	r, out := runScripts(t, map[string]string{
		"echo": "print hello $1 $# \"tab\\there\" $2\nexit 4\n",
	}, "echo", "world")
	assert.Equal(t, "hello world 1 tab\there \n", out)
	assert.Equal(t, 4, r.Root.Status)
	assert.True(t, r.Root.Normal())
}

func TestScriptFiles(t *testing.T) {
	_, out := runScripts(t, map[string]string{
		"files": `
$fd = creat notes
write $fd "abc"
close $fd
$fd2 = open notes
$n = read $fd2 10 $data
print $fd2 $n $data
unlink notes
$gone = open notes
close $fd2
$bad = close $fd2
print $gone $bad
`,
	}, "files")
	assert.Equal(t, "2 3 abc\n-1 -1\n", out)
}

func TestScriptExecJoin(t *testing.T) {
	_, out := runScripts(t, map[string]string{
		"parent": `
$pid = exec child 7
$code = join $pid $status
print $pid $code $status
$pid = exec segv
$code = join $pid $status
print $code $status
$code = join $pid $status
print $code
$pid = exec missing
print $pid
`,
		"child": "exit $1\n",
		"segv":  "store 0 1\nprint unreachable\n",
	}, "parent")

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6, out)
	assert.Equal(t, "2 1 7", lines[0])
	assert.Contains(t, lines[1], "illegal memory access")
	assert.Equal(t, "0 139", lines[2])
	assert.Equal(t, "-1", lines[3])
	assert.Equal(t, "-1", lines[4])
}

func TestScriptBadOperand(t *testing.T) {
	_, out := runScripts(t, map[string]string{
		"parent": "$pid = exec bad\n$code = join $pid $status\nprint $code $status\n",
		"bad":    "close abc\nprint unreachable\n",
	}, "parent")
	assert.Contains(t, out, `bad operand "abc"`)
	assert.True(t, strings.HasSuffix(out, "0 132\n"), out)
	assert.NotContains(t, out, "unreachable")
}

func TestScriptHalt(t *testing.T) {
	r, out := runScripts(t, map[string]string{
		"halt": "print before\nhalt\nprint after\n",
	}, "halt")
	assert.True(t, r.Halted)
	assert.Equal(t, "before\n", out)
}

func TestScriptArithmetic(t *testing.T) {
	r, out := runScripts(t, map[string]string{
		"calc": "store 0x2000 42\n$v = load 0x2000\n$q = div $v 5\nprint $v $q\n$z = div 1 0\nprint unreachable\n",
	}, "calc")
	assert.True(t, strings.HasPrefix(out, "42 8\n"), out)
	assert.Contains(t, out, "arithmetic fault")
	assert.NotContains(t, out, "unreachable")
	assert.Equal(t, 128+int(unix.SIGFPE), r.Root.Status)
}

func TestScriptRawSyscall(t *testing.T) {
	r, out := runScripts(t, map[string]string{
		"raw": "$r = syscall 8 0\nprint $r\nsyscall 99\nprint unreachable\n",
	}, "raw")
	assert.True(t, strings.HasPrefix(out, "-1\n"), out)
	assert.NotContains(t, out, "unreachable")
	assert.Equal(t, 128+int(unix.SIGSYS), r.Root.Status)
}
