package main

import (
	"bufio"
	"fmt"
	"os"
	"path"

	"github.com/djmitche/shquote"
	"github.com/orivej/e"
	"github.com/orivej/ukern/proc"
)

// writeScript writes a shell script that reruns the program of r as a
// root process of a fresh machine.
func writeScript(dir, cfgPath, progDir string, r proc.Record) {
	name := fmt.Sprintf("%d-%d-%s", r.Cmd.Parent, r.Cmd.ID, path.Base(r.Cmd.Path))
	f, err := os.OpenFile(path.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0777) //#nosec
	e.Exit(err)
	defer e.CloseOrPrint(f)

	exe, err := os.Executable()
	if err != nil {
		exe = "ukern"
	}
	flags := []string{}
	if cfgPath != "" {
		flags = append(flags, "-c", cfgPath)
	}
	if progDir != "" {
		flags = append(flags, "-d", progDir)
	}
	cmdline := append([]string{r.Cmd.Path}, r.Cmd.Args...)

	buf := bufio.NewWriter(f)
	fmt.Fprintln(buf, "#!/bin/sh")
	fmt.Fprintf(buf, "\n# status %d", r.Status)
	if r.Cause != "" {
		fmt.Fprintf(buf, ": %s", r.Cause)
	}
	fmt.Fprintln(buf)
	if len(r.Inputs) != 0 {
		fmt.Fprintf(buf, "# reads %s\n", shquote.QuoteList(r.Inputs))
	}
	if len(r.Outputs) != 0 {
		fmt.Fprintf(buf, "# writes %s\n", shquote.QuoteList(r.Outputs))
	}
	fmt.Fprintf(buf, "\nexec ${UKERN:-%s} %s %s \"$@\"\n", shquote.Quote(exe), shquote.QuoteList(flags), shquote.QuoteList(cmdline))
	err = buf.Flush()
	e.Exit(err)
}
