// Package metrics instruments the kernel with Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the kernel's collectors so that each booted kernel can
// register them on its own registry.
type Metrics struct {
	// Spawned counts processes created by exec, the root included.
	Spawned prometheus.Counter
	// Exits counts terminations by outcome: exited, faulted or killed.
	Exits *prometheus.CounterVec
	// Faults counts classified faults by kind.
	Faults *prometheus.CounterVec
	// Running is the number of processes not yet terminated.
	Running prometheus.Gauge
	// OpenFiles is the number of shared open files.
	OpenFiles prometheus.Gauge
	// DeferredUnlinks counts unlinks postponed until the last close.
	DeferredUnlinks prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Spawned: f.NewCounter(prometheus.CounterOpts{
			Name: "ukern_processes_spawned_total",
			Help: "Total number of processes created",
		}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ukern_process_exits_total",
			Help: "Total number of process terminations",
		}, []string{"outcome"}),
		Faults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ukern_faults_total",
			Help: "Total number of classified hardware faults",
		}, []string{"kind"}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Name: "ukern_processes_running",
			Help: "Processes that have not terminated",
		}),
		OpenFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "ukern_open_files",
			Help: "Open files shared across descriptor tables",
		}),
		DeferredUnlinks: f.NewCounter(prometheus.CounterOpts{
			Name: "ukern_deferred_unlinks_total",
			Help: "Unlinks postponed until the last descriptor closed",
		}),
	}
}

// Discard returns collectors registered nowhere.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
