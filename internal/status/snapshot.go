// Package status assembles printer/queue state into snapshots and runs the
// collection loop feeding the live channel.
package status

import (
	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/uploads"
)

// AirPrintState reports whether automatic advertisement is enabled.
type AirPrintState struct {
	Enabled bool `json:"enabled"`
}

// HostStats carries the single-board host's vitals.
type HostStats struct {
	Hostname      string  `json:"hostname"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Temperature   string  `json:"temperature"`
}

// Snapshot is a complete, self-consistent description of printer, queue,
// and job state. It is the sole source of truth the UI renders; clients
// replace it wholesale and never patch it.
type Snapshot struct {
	CUPSAvailable         bool                 `json:"cups_available"`
	Scheduler             cups.SchedulerStatus `json:"scheduler"`
	DefaultPrinter        string               `json:"default_printer"`
	DefaultPrinterDisplay string               `json:"default_printer_display"`
	DefaultPrinterLabel   string               `json:"default_printer_label"`
	Printers              []cups.PrinterInfo   `json:"printers"`
	Jobs                  []cups.QueueJob      `json:"jobs"`
	Stats                 cups.JobStats        `json:"stats"`
	AirPrint              AirPrintState        `json:"airprint"`
	Host                  *HostStats           `json:"host,omitempty"`
}

// StatusUpdate is the combined live-channel payload: the full file list and
// the full snapshot. Level-triggered: every update supersedes the previous
// one entirely, so missed updates are harmless.
type StatusUpdate struct {
	TS     int64          `json:"ts"`
	Files  []uploads.File `json:"files"`
	Status Snapshot       `json:"status"`
}

// PrinterNames returns the snapshot's printer names.
func (s Snapshot) PrinterNames() []string {
	names := make([]string, 0, len(s.Printers))
	for _, p := range s.Printers {
		names = append(names, p.Name)
	}
	return names
}

// HasPrinter reports whether name is a known destination in this snapshot.
func (s Snapshot) HasPrinter(name string) bool {
	for _, p := range s.Printers {
		if p.Name == name {
			return true
		}
	}
	return false
}
