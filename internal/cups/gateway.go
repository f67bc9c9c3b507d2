package cups

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The Pi + CUPS combination can be sluggish; keep lpstat timeouts modest.
const queryTimeout = 6 * time.Second

var (
	printerLineRe  = regexp.MustCompile(`(?i)^printer\s+(\S+)\s+(idle|disabled|busy)\b`)
	defaultDestRe  = regexp.MustCompile(`destination:\s*(\S+)`)
	printerStartRe = regexp.MustCompile(`^<Printer\s+([^>]+)>`)
	printerInfoRe  = regexp.MustCompile(`^Info\s+(.+)$`)
	jobIDSuffixRe  = regexp.MustCompile(`-(\d+)$`)
	jobIDTokenRe   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// printers.conf carries the human-readable Info labels CUPS strips from
// lpstat output. The .O variant is the pre-edit backup CUPS keeps.
var printersConfPaths = []string{
	"/etc/cups/printers.conf",
	"/etc/cups/printers.conf.O",
}

// PrinterInfo describes one CUPS destination. Reconstructed on every poll;
// identity is Name only.
type PrinterInfo struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	IsDefault   bool   `json:"is_default"`
	Accepting   *bool  `json:"accepting"`
	DisplayName string `json:"display_name,omitempty"`
}

// QueueJob is a display-ready queue entry from lpstat -o.
type QueueJob struct {
	JobID int    `json:"job_id"`
	User  string `json:"user"`
	Size  string `json:"size"`
	Raw   string `json:"raw"`
}

// JobStats holds queue counters.
type JobStats struct {
	ActiveJobs       int    `json:"active_jobs"`
	CompletedJobs    int    `json:"completed_jobs"`
	LastCompletedRaw string `json:"last_completed_raw"`
}

// SchedulerStatus reports whether cupsd itself is running.
type SchedulerStatus struct {
	Running bool   `json:"cups_scheduler_running"`
	Raw     string `json:"raw"`
	Error   string `json:"error,omitempty"`
}

// Gateway wraps the CUPS command-line tools.
type Gateway struct {
	runner    Runner
	confPaths []string
}

// NewGateway creates a gateway backed by the given runner.
func NewGateway(runner Runner) *Gateway {
	return &Gateway{runner: runner, confPaths: printersConfPaths}
}

// Available reports whether the CUPS tools respond at all. A failing exit
// status still counts as available; only a missing binary or timeout does not.
func (g *Gateway) Available(ctx context.Context) bool {
	_, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-r")
	if err != nil {
		var cmdErr *CommandError
		return errors.As(err, &cmdErr)
	}
	return true
}

// DefaultPrinter returns the system default destination name, or "".
func (g *Gateway) DefaultPrinter(ctx context.Context) string {
	res, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-d")
	if err != nil && res.Stdout == "" {
		return ""
	}
	// Example: "system default destination: HP_LaserJet"
	m := defaultDestRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return ""
	}
	return m[1]
}

// DefaultPrinterDisplay returns the Info label for the default printer,
// falling back to its queue name.
func (g *Gateway) DefaultPrinterDisplay(ctx context.Context) string {
	name := g.DefaultPrinter(ctx)
	if name == "" {
		return ""
	}
	if label, ok := g.loadPrinterInfo()[name]; ok {
		return label
	}
	return name
}

// ListPrinters returns all destinations with state and accepting flags.
func (g *Gateway) ListPrinters(ctx context.Context) ([]PrinterInfo, error) {
	def := g.DefaultPrinter(ctx)
	labels := g.loadPrinterInfo()

	res, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-p")
	if err != nil && res.Stdout == "" {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			return nil, err
		}
	}
	printers := parsePrinters(res.Stdout, def, labels)

	acc, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-a")
	if err == nil || acc.Stdout != "" {
		applyAccepting(printers, acc.Stdout)
	}
	return printers, nil
}

// QueueJobs returns the current queue as reported by lpstat -o, in
// submission order.
func (g *Gateway) QueueJobs(ctx context.Context) ([]QueueJob, error) {
	res, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-o")
	if err != nil && res.Stdout == "" {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			return nil, err
		}
	}
	return parseJobs(res.Stdout), nil
}

// Stats returns active and completed job counters.
func (g *Gateway) Stats(ctx context.Context) (JobStats, error) {
	active, err := g.QueueJobs(ctx)
	if err != nil {
		return JobStats{}, err
	}

	res, _ := g.runner.Run(ctx, queryTimeout, "lpstat", "-W", "completed", "-o")
	var completed []string
	for _, ln := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(ln) != "" {
			completed = append(completed, ln)
		}
	}

	stats := JobStats{
		ActiveJobs:    len(active),
		CompletedJobs: len(completed),
	}
	if len(completed) > 0 {
		stats.LastCompletedRaw = completed[len(completed)-1]
	}
	return stats, nil
}

// Scheduler reports cupsd status from lpstat -r.
func (g *Gateway) Scheduler(ctx context.Context) SchedulerStatus {
	res, err := g.runner.Run(ctx, queryTimeout, "lpstat", "-r")
	if err != nil && res.Stdout == "" {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			return SchedulerStatus{Running: false, Error: err.Error()}
		}
	}
	return SchedulerStatus{
		Running: strings.Contains(strings.ToLower(res.Stdout), "running"),
		Raw:     strings.TrimSpace(res.Stdout),
	}
}

// PrinterDetail returns the verbose lpstat description of one printer.
func (g *Gateway) PrinterDetail(ctx context.Context, name string) (map[string]string, error) {
	if name == "" {
		return map[string]string{}, nil
	}
	res, _ := g.runner.Run(ctx, queryTimeout, "lpstat", "-l", "-p", name)
	return map[string]string{
		"name":   name,
		"detail": strings.TrimSpace(res.Stdout),
	}, nil
}

// Print submits a file via lp and returns its stdout.
func (g *Gateway) Print(ctx context.Context, path, printer string, copies int, title string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file does not exist: %s", path)
	}
	if copies < 1 || copies > 99 {
		return "", fmt.Errorf("copies must be between 1 and 99")
	}

	argv := []string{"lp", "-n", strconv.Itoa(copies), "-t", title}
	if printer != "" {
		argv = append(argv, "-d", printer)
	}
	// Force monochrome where the driver supports it; harmless if ignored.
	argv = append(argv,
		"-o", "print-color-mode=monochrome",
		"-o", "ColorModel=Gray",
		path,
	)

	res, err := g.runner.Run(ctx, 60*time.Second, argv...)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			reason := strings.TrimSpace(res.Stderr)
			if reason == "" {
				reason = strings.TrimSpace(res.Stdout)
			}
			if reason == "" {
				reason = "unknown error"
			}
			return "", fmt.Errorf("printing failed: %s", reason)
		}
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CancelJob cancels a queued job by id.
func (g *Gateway) CancelJob(ctx context.Context, jobID string) error {
	if jobID == "" || !jobIDTokenRe.MatchString(jobID) {
		return fmt.Errorf("invalid job id")
	}
	_, err := g.runner.Run(ctx, queryTimeout, "cancel", jobID)
	return err
}

// loadPrinterInfo parses printers.conf Info labels, best-effort.
func (g *Gateway) loadPrinterInfo() map[string]string {
	for _, path := range g.confPaths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		labels := parsePrintersConf(f)
		f.Close()
		if len(labels) > 0 {
			return labels
		}
	}
	return map[string]string{}
}

func parsePrinters(out, def string, labels map[string]string) []PrinterInfo {
	var printers []PrinterInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := printerLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		printers = append(printers, PrinterInfo{
			Name:        name,
			State:       strings.ToLower(m[2]),
			IsDefault:   name == def,
			DisplayName: labels[name],
		})
	}
	return printers
}

func applyAccepting(printers []PrinterInfo, out string) {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		name := parts[0]
		accepting := true
		if containsAll(parts, "not", "accepting") {
			accepting = false
		}
		for i := range printers {
			if printers[i].Name == name {
				v := accepting
				printers[i].Accepting = &v
				break
			}
		}
	}
}

func parseJobs(out string) []QueueJob {
	var jobs []QueueJob
	// Example: "HP_LaserJet-12  pi  1024  Mon 01 Jan 2026 10:00:00 AM"
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		job := QueueJob{User: parts[1], Size: parts[2], Raw: line}
		if m := jobIDSuffixRe.FindStringSubmatch(parts[0]); m != nil {
			job.JobID, _ = strconv.Atoi(m[1])
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func parsePrintersConf(r io.Reader) map[string]string {
	labels := map[string]string{}
	scanner := bufio.NewScanner(r)
	current := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := printerStartRe.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			continue
		}
		if strings.HasPrefix(line, "</Printer>") {
			current = ""
			continue
		}
		if current == "" {
			continue
		}
		if m := printerInfoRe.FindStringSubmatch(line); m != nil {
			label := strings.Trim(strings.TrimSpace(m[1]), `"`)
			if label != "" {
				labels[current] = label
			}
		}
	}
	return labels
}

func containsAll(parts []string, words ...string) bool {
	for _, w := range words {
		found := false
		for _, p := range parts {
			if p == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
