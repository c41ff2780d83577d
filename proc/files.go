package proc

import (
	"fmt"

	"github.com/orivej/ukern/fd"
)

// Creat creates or truncates name and opens it.
func (p *Process) Creat(name string) (int, error) {
	n, err := p.fds.Creat(name)
	if err == nil {
		p.outputs.Add(name)
	}
	return n, err
}

// Open opens the existing file name.
func (p *Process) Open(name string) (int, error) {
	return p.fds.Open(name)
}

func (p *Process) Read(fd int, buf []byte) (int, error) {
	n, err := p.fds.Read(fd, buf)
	if of := p.fds.File(fd); of != nil && n > 0 {
		p.inputs.Add(of.Name())
	}
	return n, err
}

func (p *Process) Write(fd int, buf []byte) (int, error) {
	n, err := p.fds.Write(fd, buf)
	if of := p.fds.File(fd); of != nil && n > 0 {
		p.outputs.Add(of.Name())
	}
	return n, err
}

func (p *Process) Close(fd int) error {
	return p.fds.Close(fd)
}

// Unlink removes name, deferring the removal while it is open anywhere.
func (p *Process) Unlink(name string) error {
	return p.k.files.Unlink(name)
}

// Printf writes to the console.
func (p *Process) Printf(format string, args ...interface{}) {
	p.Write(fd.Stdout, []byte(fmt.Sprintf(format, args...)))
}

// FDs is the process's descriptor table.
func (p *Process) FDs() *fd.Table {
	return p.fds
}
