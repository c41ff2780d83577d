package main

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/orivej/e"
	"github.com/orivej/ukern/proc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type recorder struct {
	mu      sync.Mutex
	records []proc.Record
}

func (r *recorder) add(rec proc.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// sorted returns the records by pid, in termination order for reused pids.
func (r *recorder) sorted() []proc.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := append([]proc.Record(nil), r.records...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Cmd.ID < records[j].Cmd.ID
	})
	return records
}

type output struct {
	BootID   string
	Halted   bool
	HaltedBy int `json:",omitempty"`
	Records  []proc.Record
}

func writeRecords(path string, report proc.Report, records []proc.Record) error {
	w := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer e.CloseOrPrint(f)
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		BootID:   report.BootID.String(),
		Halted:   report.Halted,
		HaltedBy: report.HaltedBy,
		Records:  records,
	})
}

func printSummary(w io.Writer, report proc.Report, records []proc.Record) {
	faulted := 0
	for _, r := range records {
		if r.Cause != "" {
			faulted++
		}
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "boot %s: %d processes, %d terminated abnormally\n", report.BootID, len(records), faulted)
	if report.Halted {
		p.Fprintf(w, "machine halted by process %d\n", report.HaltedBy)
		return
	}
	p.Fprintf(w, "root exited with status %d\n", report.Root.Status)
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
