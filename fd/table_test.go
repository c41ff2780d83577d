package fd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/orivej/ukern/metrics"
	"github.com/orivej/ukern/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newFiles() (*Files, *storage.Memory) {
	store := storage.NewMemory()
	return NewFiles(store, metrics.Discard()), store
}

func TestCreatUntilFull(t *testing.T) {
	files, store := newFiles()
	table := files.NewTable(17, Console{})

	// 15 usable slots after the console.
	fds := map[int]bool{}
	for i := 0; i < 15; i++ {
		fd, err := table.Creat(string(rune('a' + i)))
		require.NoError(t, err)
		assert.False(t, fds[fd], "descriptor %d handed out twice", fd)
		assert.True(t, fd >= 2)
		fds[fd] = true
	}

	fd, err := table.Creat("overflow")
	assert.Equal(t, unix.EMFILE, err)
	assert.Equal(t, -1, fd)
	_, err = store.Size("overflow")
	assert.Equal(t, unix.ENOENT, err, "a failed creat must not create the file")

	// Closing makes the lowest slot reusable immediately.
	require.NoError(t, table.Close(5))
	fd, err = table.Creat("again")
	require.NoError(t, err)
	assert.Equal(t, 5, fd)
}

func TestReadAfterReopen(t *testing.T) {
	files, _ := newFiles()
	table := files.NewTable(16, Console{})

	fd, err := table.Creat("hello")
	require.NoError(t, err)
	n, err := table.Write(fd, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, table.Close(fd))

	fd, err = table.Open("hello")
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err = table.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf[:n]))

	n, err = table.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenMissing(t *testing.T) {
	files, _ := newFiles()
	table := files.NewTable(16, Console{})

	_, err := table.Open("missing")
	assert.Equal(t, unix.ENOENT, err)
	_, err = table.Creat("")
	assert.Equal(t, unix.EINVAL, err)
	_, err = table.Open(strings.Repeat("n", 300))
	assert.Equal(t, unix.ENAMETOOLONG, err)
	assert.Equal(t, 2, table.Len())
}

func TestConsoleDescriptors(t *testing.T) {
	files, _ := newFiles()
	var out bytes.Buffer
	table := files.NewTable(16, Console{In: strings.NewReader("typed"), Out: &out})

	n, err := table.Write(Stdout, []byte("hi\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hi\n", out.String())

	buf := make([]byte, 8)
	n, err = table.Read(Stdin, buf)
	require.NoError(t, err)
	assert.Equal(t, "typed", string(buf[:n]))

	_, err = table.Read(Stdout, buf)
	assert.Equal(t, unix.EBADF, err)
	_, err = table.Write(Stdin, buf)
	assert.Equal(t, unix.EBADF, err)
	assert.Equal(t, unix.EBADF, table.Close(Stdin))
	assert.Equal(t, unix.EBADF, table.Close(Stdout))
}

func TestBadDescriptors(t *testing.T) {
	files, _ := newFiles()
	table := files.NewTable(16, Console{})
	for _, fd := range []int{-1, 3, 16, 1000} {
		_, err := table.Read(fd, nil)
		assert.Equal(t, unix.EBADF, err, fmt.Sprint(fd))
		_, err = table.Write(fd, nil)
		assert.Equal(t, unix.EBADF, err, fmt.Sprint(fd))
		assert.Equal(t, unix.EBADF, table.Close(fd), fmt.Sprint(fd))
	}
}

func TestUnlinkWhileOpen(t *testing.T) {
	files, store := newFiles()
	table := files.NewTable(16, Console{})

	fd, err := table.Creat("test_file")
	require.NoError(t, err)
	require.NoError(t, files.Unlink("test_file"))

	of := files.Lookup("test_file")
	require.NotNil(t, of)
	assert.True(t, of.Unlinked())
	assert.Equal(t, 1, of.Count())

	// The name is gone but the object survives.
	_, err = table.Open("test_file")
	assert.Equal(t, unix.ENOENT, err)
	_, err = table.Creat("test_file")
	assert.Equal(t, unix.ENOENT, err)
	assert.Equal(t, unix.ENOENT, files.Unlink("test_file"))
	_, err = store.Size("test_file")
	assert.NoError(t, err)

	// The holder keeps using it.
	_, err = table.Write(fd, []byte("still here"))
	assert.NoError(t, err)

	require.NoError(t, table.Close(fd))
	_, err = store.Size("test_file")
	assert.Equal(t, unix.ENOENT, err)
	assert.Nil(t, files.Lookup("test_file"))

	// Once removed the name is free again.
	fd, err = table.Creat("test_file")
	require.NoError(t, err)
	assert.Equal(t, 2, fd)
}

func TestUnlinkSharedAcrossTables(t *testing.T) {
	files, store := newFiles()
	a := files.NewTable(16, Console{})
	b := files.NewTable(16, Console{})

	fa, err := a.Creat("shared")
	require.NoError(t, err)
	fb, err := b.Open("shared")
	require.NoError(t, err)
	assert.Equal(t, 2, files.Lookup("shared").Count())

	require.NoError(t, files.Unlink("shared"))
	require.NoError(t, a.Close(fa))
	_, err = store.Size("shared")
	assert.NoError(t, err, "removed before the last close")

	b.CloseAll()
	_, err = store.Size("shared")
	assert.Equal(t, unix.ENOENT, err)
	assert.Equal(t, 0, b.Len())
	_, err = b.Read(fb, nil)
	assert.Equal(t, unix.EBADF, err)
}

func TestUnlinkClosed(t *testing.T) {
	files, store := newFiles()
	require.NoError(t, store.Create("hello"))
	require.NoError(t, files.Unlink("hello"))
	_, err := store.Size("hello")
	assert.Equal(t, unix.ENOENT, err)
	assert.Equal(t, unix.ENOENT, files.Unlink("hello"))
}

func TestIndependentPositions(t *testing.T) {
	files, _ := newFiles()
	table := files.NewTable(16, Console{})

	w, err := table.Creat("f")
	require.NoError(t, err)
	_, err = table.Write(w, []byte("abcdef"))
	require.NoError(t, err)

	r, err := table.Open("f")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = table.Read(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))
	assert.Same(t, table.File(w), table.File(r))
	assert.Nil(t, table.File(Stdout))
}

func TestOpenFilesGauge(t *testing.T) {
	store := storage.NewMemory()
	m := metrics.Discard()
	files := NewFiles(store, m)
	table := files.NewTable(16, Console{})

	fd, err := table.Creat("g")
	require.NoError(t, err)
	_, err = table.Open("g")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenFiles))

	require.NoError(t, files.Unlink("g"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeferredUnlinks))
	table.CloseAll()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenFiles))
	_, err = table.Read(fd, nil)
	assert.Equal(t, unix.EBADF, err)
}
