// Package fd manages per-process descriptor tables and the open files
// they share.
package fd

import (
	"io"
	"sync"

	"github.com/op/go-logging"
	"github.com/orivej/ukern/metrics"
	"github.com/orivej/ukern/storage"
	"golang.org/x/sys/unix"
)

var (
	log = logging.MustGetLogger("fd")
)

// An OpenFile is a storage object opened by one or more descriptors,
// possibly in different processes. It stays registered under its name
// until the last descriptor closes.
type OpenFile struct {
	name     string
	count    int  // descriptors referring to this file
	unlinked bool // removal deferred until count drops to zero

	files *Files
}

func (of *OpenFile) Name() string {
	return of.name
}

// Count is the number of live descriptors referring to of.
func (of *OpenFile) Count() int {
	of.files.m.Lock()
	defer of.files.m.Unlock()
	return of.count
}

// Unlinked reports whether of is waiting for its last close to be removed.
func (of *OpenFile) Unlinked() bool {
	of.files.m.Lock()
	defer of.files.m.Unlock()
	return of.unlinked
}

func (of *OpenFile) ReadAt(p []byte, off int) (int, error) {
	n, err := of.files.store.ReadAt(of.name, p, off)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (of *OpenFile) WriteAt(p []byte, off int) (int, error) {
	return of.files.store.WriteAt(of.name, p, off)
}

// Files is the system-wide registry of open files. Its reference counts
// and unlink flags are the only descriptor state shared between
// processes, and every change to them happens under one lock.
type Files struct {
	store   storage.Backend
	open    map[string]*OpenFile
	metrics *metrics.Metrics

	m sync.Mutex
}

func NewFiles(store storage.Backend, m *metrics.Metrics) *Files {
	if m == nil {
		m = metrics.Discard()
	}
	return &Files{
		store:   store,
		open:    make(map[string]*OpenFile),
		metrics: m,
	}
}

// Lookup returns the open file registered under name, if any.
func (fs *Files) Lookup(name string) *OpenFile {
	fs.m.Lock()
	defer fs.m.Unlock()
	return fs.open[name]
}

func (fs *Files) acquire(name string, create bool) (*OpenFile, error) {
	if err := storage.ValidName(name); err != nil {
		return nil, err
	}

	fs.m.Lock()
	defer fs.m.Unlock()

	of := fs.open[name]
	if of != nil && of.unlinked {
		// The name is gone for everyone but the current holders.
		return nil, unix.ENOENT
	}
	if create {
		if err := fs.store.Create(name); err != nil {
			return nil, err
		}
	} else if of == nil {
		if _, err := fs.store.Size(name); err != nil {
			return nil, err
		}
	}
	if of == nil {
		of = &OpenFile{name: name, files: fs}
		fs.open[name] = of
		fs.metrics.OpenFiles.Inc()
	}
	of.count++
	return of, nil
}

func (fs *Files) release(of *OpenFile) {
	fs.m.Lock()
	defer fs.m.Unlock()

	of.count--
	if of.count > 0 {
		return
	}
	delete(fs.open, of.name)
	fs.metrics.OpenFiles.Dec()
	if of.unlinked {
		if err := fs.store.Remove(of.name); err != nil {
			log.Errorf("deferred unlink of %q failed: %s", of.name, err)
			return
		}
		log.Debugf("deferred unlink of %q completed", of.name)
	}
}

// Unlink removes name from the namespace. If descriptors still refer to
// it, the storage object survives until the last of them is closed, but
// the name can no longer be opened or created in the meantime.
func (fs *Files) Unlink(name string) error {
	if err := storage.ValidName(name); err != nil {
		return err
	}

	fs.m.Lock()
	defer fs.m.Unlock()

	if of := fs.open[name]; of != nil {
		if of.unlinked {
			return unix.ENOENT
		}
		of.unlinked = true
		fs.metrics.DeferredUnlinks.Inc()
		log.Debugf("unlink of %q deferred, %d descriptors open", name, of.count)
		return nil
	}
	return fs.store.Remove(name)
}
