package main

import (
	"strings"

	"github.com/orivej/ukern/fd"
	"github.com/orivej/ukern/loader"
	"github.com/orivej/ukern/proc"
)

func builtins() *loader.Registry {
	r := loader.NewRegistry()
	r.Register("true", func(*proc.Process, []string) int { return 0 })
	r.Register("false", func(*proc.Process, []string) int { return 1 })
	r.Register("echo", echo)
	r.Register("cat", cat)
	r.Register("cp", cp)
	return r
}

func echo(p *proc.Process, args []string) int {
	if _, err := p.Write(fd.Stdout, []byte(strings.Join(args, " ")+"\n")); err != nil {
		return 1
	}
	return 0
}

// cat copies the named files, or the console input, to the console.
func cat(p *proc.Process, args []string) int {
	if len(args) == 0 {
		return copyFD(p, fd.Stdout, fd.Stdin)
	}
	status := 0
	for _, name := range args {
		in, err := p.Open(name)
		if err != nil {
			p.Printf("cat: %s: %v\n", name, err)
			status = 1
			continue
		}
		if copyFD(p, fd.Stdout, in) != 0 {
			status = 1
		}
		_ = p.Close(in)
	}
	return status
}

func cp(p *proc.Process, args []string) int {
	if len(args) != 2 {
		p.Printf("usage: cp src dst\n")
		return 2
	}
	in, err := p.Open(args[0])
	if err != nil {
		p.Printf("cp: %s: %v\n", args[0], err)
		return 1
	}
	out, err := p.Creat(args[1])
	if err != nil {
		p.Printf("cp: %s: %v\n", args[1], err)
		return 1
	}
	return copyFD(p, out, in)
}

func copyFD(p *proc.Process, to, from int) int {
	buf := make([]byte, 512)
	for {
		n, err := p.Read(from, buf)
		if err != nil {
			return 1
		}
		if n == 0 {
			return 0
		}
		if _, err := p.Write(to, buf[:n]); err != nil {
			return 1
		}
	}
}
