package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/metrics"
)

// Gateway is the slice of the CUPS gateway the aggregator consumes.
type Gateway interface {
	Available(ctx context.Context) bool
	DefaultPrinter(ctx context.Context) string
	DefaultPrinterDisplay(ctx context.Context) string
	ListPrinters(ctx context.Context) ([]cups.PrinterInfo, error)
	QueueJobs(ctx context.Context) ([]cups.QueueJob, error)
	Stats(ctx context.Context) (cups.JobStats, error)
	Scheduler(ctx context.Context) cups.SchedulerStatus
}

// Ensurer is an optional hook invoked after each snapshot with the current
// printer set (AirPrint auto-advertisement).
type Ensurer interface {
	MaybeEnsure(ctx context.Context, printerNames []string)
}

// ConfigSource exposes the bits of config the aggregator reads per snapshot.
type ConfigSource interface {
	AirPrintAutoEnable() bool
}

// Aggregator builds status snapshots. A CUPS outage is downgraded to an
// unavailable snapshot; job counters then hold their last-known values.
type Aggregator struct {
	gateway Gateway
	cfg     ConfigSource
	ensurer Ensurer

	collectHost bool

	mu        sync.Mutex
	lastStats cups.JobStats
}

// NewAggregator creates an aggregator. ensurer may be nil.
func NewAggregator(gateway Gateway, cfg ConfigSource, ensurer Ensurer, collectHost bool) *Aggregator {
	return &Aggregator{
		gateway:     gateway,
		cfg:         cfg,
		ensurer:     ensurer,
		collectHost: collectHost,
	}
}

// Snapshot assembles the current state. It never returns an error: gateway
// failures degrade to an unavailable snapshot.
func (a *Aggregator) Snapshot(ctx context.Context) Snapshot {
	start := time.Now()

	available := a.gateway.Available(ctx)
	snap := Snapshot{
		CUPSAvailable: available,
		Printers:      []cups.PrinterInfo{},
		Jobs:          []cups.QueueJob{},
		AirPrint:      AirPrintState{Enabled: a.cfg.AirPrintAutoEnable()},
	}

	if available {
		snap.Scheduler = a.gateway.Scheduler(ctx)
		snap.DefaultPrinter = a.gateway.DefaultPrinter(ctx)
		snap.DefaultPrinterDisplay = a.gateway.DefaultPrinterDisplay(ctx)
		if snap.DefaultPrinterDisplay != "" {
			snap.DefaultPrinterLabel = fmt.Sprintf("%s (default)", snap.DefaultPrinterDisplay)
		}

		if printers, err := a.gateway.ListPrinters(ctx); err == nil && printers != nil {
			snap.Printers = printers
		} else if err != nil {
			logging.Warn("printer list failed", zap.Error(err))
		}
		if jobs, err := a.gateway.QueueJobs(ctx); err == nil && jobs != nil {
			snap.Jobs = jobs
		} else if err != nil {
			logging.Warn("queue listing failed", zap.Error(err))
		}
		if stats, err := a.gateway.Stats(ctx); err == nil {
			snap.Stats = stats
			a.mu.Lock()
			a.lastStats = stats
			a.mu.Unlock()
		} else {
			logging.Warn("job stats failed", zap.Error(err))
			snap.Stats = a.lastKnownStats()
		}
	} else {
		snap.Stats = a.lastKnownStats()
	}

	if a.collectHost {
		snap.Host = collectHostStats()
	}

	if a.ensurer != nil && available && snap.AirPrint.Enabled {
		a.ensurer.MaybeEnsure(ctx, snap.PrinterNames())
	}

	metrics.RecordSnapshot(time.Since(start), available)
	return snap
}

func (a *Aggregator) lastKnownStats() cups.JobStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStats
}

// collectHostStats gathers host vitals, best-effort.
func collectHostStats() *HostStats {
	stats := &HostStats{Temperature: "--"}

	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.UptimeSeconds = info.Uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if v, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = v.UsedPercent
	}
	if d, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = d.UsedPercent
	}
	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				stats.Temperature = fmt.Sprintf("%.1f°C", t.Temperature)
				break
			}
		}
	}
	return stats
}
