package runner

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/metrics"
)

// SystemConfig configures SystemRunner's /proc sampling.
type SystemConfig struct {
	IntervalSecs     uint64
	PID              *uint32
	Comm             string
	IncludeChildren  bool
	CPUThreshold     *float64
	MemoryThresholdMB *uint64
}

func defaultSystemConfig() SystemConfig {
	return SystemConfig{IntervalSecs: 10, IncludeChildren: true}
}

// SystemRunner samples CPU, memory, and thread-count metrics from
// /proc at a fixed interval, either for specific target processes (by
// PID or command name, optionally including children) or, absent a
// target, for the system as a whole.
type SystemRunner struct {
	config    SystemConfig
	analyzers []core.Analyzer
}

func NewSystemRunner() *SystemRunner {
	return &SystemRunner{config: defaultSystemConfig()}
}

func (r *SystemRunner) Interval(secs uint64) *SystemRunner {
	r.config.IntervalSecs = secs
	return r
}

func (r *SystemRunner) PID(pid uint32) *SystemRunner {
	r.config.PID = &pid
	return r
}

func (r *SystemRunner) Comm(comm string) *SystemRunner {
	r.config.Comm = comm
	return r
}

func (r *SystemRunner) IncludeChildren(include bool) *SystemRunner {
	r.config.IncludeChildren = include
	return r
}

func (r *SystemRunner) CPUThreshold(threshold float64) *SystemRunner {
	r.config.CPUThreshold = &threshold
	return r
}

func (r *SystemRunner) MemoryThresholdMB(threshold uint64) *SystemRunner {
	r.config.MemoryThresholdMB = &threshold
	return r
}

func (r *SystemRunner) AddAnalyzer(a core.Analyzer) *SystemRunner {
	r.analyzers = append(r.analyzers, a)
	return r
}

func (r *SystemRunner) Name() string { return "system" }
func (r *SystemRunner) ID() string   { return "system" }

type processStats struct {
	utime, stime uint64
	timestamp    uint64
}

func (r *SystemRunner) Run(ctx context.Context) (core.EventStream, error) {
	raw := make(chan core.Event)
	cfg := r.config

	go func() {
		defer close(raw)

		ticker := time.NewTicker(time.Duration(cfg.IntervalSecs) * time.Second)
		defer ticker.Stop()

		previous := make(map[uint32]processStats)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			// A single timestamp is captured per tick and threaded
			// through every event this tick produces, rather than
			// re-reading boot time per target process.
			timestamp := bootTimeNs()

			targets := findTargetPIDs(cfg)
			if len(targets) == 0 {
				if cfg.PID != nil || cfg.Comm != "" {
					continue
				}
				if ev, err := systemWideMetrics(timestamp); err == nil {
					select {
					case raw <- ev:
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			for _, pid := range targets {
				pidsToMonitor := []uint32{pid}
				if cfg.IncludeChildren {
					pidsToMonitor = append(pidsToMonitor, allChildren(pid)...)
				}

				ev, err := collectProcessMetrics(pid, pidsToMonitor, timestamp, previous, cfg)
				if err != nil {
					continue
				}
				select {
				case raw <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return runAnalyzerChain(ctx, raw, r.analyzers)
}

func bootTimeNs() uint64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return uint64(secs * 1_000_000_000.0)
}

func processExists(pid uint32) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}

func findTargetPIDs(cfg SystemConfig) []uint32 {
	if cfg.PID != nil {
		if processExists(*cfg.PID) {
			return []uint32{*cfg.PID}
		}
		return nil
	}
	if cfg.Comm != "" {
		return findPIDsByName(cfg.Comm)
	}
	return nil
}

func findPIDsByName(pattern string) []uint32 {
	var matching []uint32
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return matching
	}
	for _, entry := range entries {
		pid, err := strconv.ParseUint(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
		if err != nil {
			continue
		}
		if strings.Contains(strings.TrimSpace(string(comm)), pattern) {
			matching = append(matching, uint32(pid))
		}
	}
	return matching
}

func allChildren(parentPID uint32) []uint32 {
	var children []uint32
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return children
	}
	for _, entry := range entries {
		pid, err := strconv.ParseUint(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
		if err != nil {
			continue
		}
		fields := strings.Fields(string(stat))
		if len(fields) <= 3 {
			continue
		}
		ppid, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil || uint32(ppid) != parentPID {
			continue
		}
		children = append(children, uint32(pid))
		children = append(children, allChildren(uint32(pid))...)
	}
	return children
}

func collectProcessMetrics(mainPID uint32, allPIDs []uint32, timestamp uint64, previous map[uint32]processStats, cfg SystemConfig) (core.Event, error) {
	var totalRSSKB, totalVSZKB uint64
	var totalCPUPercent float64
	var threadCount uint32
	processName := "unknown"

	if comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", mainPID)); err == nil {
		processName = strings.TrimSpace(string(comm))
	}

	for _, pid := range allPIDs {
		if !processExists(pid) {
			continue
		}
		if rss, vsz, err := processMemory(pid); err == nil {
			totalRSSKB += rss
			totalVSZKB += vsz
		}
		if stats, err := processCPUStats(pid, timestamp); err == nil {
			totalCPUPercent += cpuPercentage(pid, stats, previous, timestamp)
		}
		if pid == mainPID {
			threadCount = threadCountOf(pid)
		}
	}

	childrenCount := len(allPIDs) - 1

	alert := false
	if cfg.CPUThreshold != nil && totalCPUPercent >= *cfg.CPUThreshold {
		alert = true
	}
	if cfg.MemoryThresholdMB != nil && totalRSSKB/1024 >= *cfg.MemoryThresholdMB {
		alert = true
	}

	data := map[string]interface{}{
		"type":      "system_metrics",
		"pid":       mainPID,
		"comm":      processName,
		"timestamp": timestamp,
		"cpu": map[string]interface{}{
			"percent": fmt.Sprintf("%.2f", totalCPUPercent),
			"cores":   runtime.NumCPU(),
		},
		"memory": map[string]interface{}{
			"rss_kb": totalRSSKB,
			"rss_mb": totalRSSKB / 1024,
			"vsz_kb": totalVSZKB,
			"vsz_mb": totalVSZKB / 1024,
		},
		"process": map[string]interface{}{
			"threads":  threadCount,
			"children": childrenCount,
		},
		"alert": alert,
	}

	metrics.RecordSystemSample(processName, totalCPUPercent, float64(totalRSSKB*1024), int(threadCount))

	return core.NewEventWithTimestamp(timestamp, "system", mainPID, processName, data), nil
}

func systemWideMetrics(timestamp uint64) (core.Event, error) {
	loadAvg1, loadAvg5, loadAvg15, err := loadAverage()
	if err != nil {
		return core.Event{}, err
	}
	totalMemKB, freeMemKB, availMemKB, err := systemMemory()
	if err != nil {
		return core.Event{}, err
	}
	usedMemKB := totalMemKB - availMemKB
	usedPercent := float64(0)
	if totalMemKB > 0 {
		usedPercent = (float64(usedMemKB) / float64(totalMemKB)) * 100.0
	}

	data := map[string]interface{}{
		"type":      "system_wide",
		"timestamp": timestamp,
		"cpu": map[string]interface{}{
			"cores":          runtime.NumCPU(),
			"load_avg_1min":  loadAvg1,
			"load_avg_5min":  loadAvg5,
			"load_avg_15min": loadAvg15,
		},
		"memory": map[string]interface{}{
			"total_kb":     totalMemKB,
			"total_mb":     totalMemKB / 1024,
			"used_kb":      usedMemKB,
			"used_mb":      usedMemKB / 1024,
			"free_kb":      freeMemKB,
			"available_kb": availMemKB,
			"used_percent": fmt.Sprintf("%.2f", usedPercent),
		},
	}

	return core.NewEventWithTimestamp(timestamp, "system", 0, "system", data), nil
}

func processMemory(pid uint32) (rssKB, vszKB uint64, err error) {
	statm, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(statm))
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("invalid statm format for pid %d", pid)
	}
	const pageSizeKB = 4
	vszPages, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	rssPages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return rssPages * pageSizeKB, vszPages * pageSizeKB, nil
}

func processCPUStats(pid uint32, timestamp uint64) (processStats, error) {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return processStats{}, err
	}
	fields := strings.Fields(string(stat))
	if len(fields) < 15 {
		return processStats{}, fmt.Errorf("invalid stat format for pid %d", pid)
	}
	utime, err := strconv.ParseUint(fields[13], 10, 64)
	if err != nil {
		return processStats{}, err
	}
	stime, err := strconv.ParseUint(fields[14], 10, 64)
	if err != nil {
		return processStats{}, err
	}
	return processStats{utime: utime, stime: stime, timestamp: timestamp}, nil
}

func cpuPercentage(pid uint32, current processStats, previous map[uint32]processStats, timestamp uint64) float64 {
	const userHz = 100.0
	cpuPercent := 0.0
	if prev, ok := previous[pid]; ok {
		timeDelta := float64(timestamp-prev.timestamp) / 1_000_000_000.0
		cpuDelta := (current.utime + current.stime) - (prev.utime + prev.stime)
		if timeDelta > 0 {
			cpuPercent = (float64(cpuDelta) / userHz / timeDelta) * 100.0
		}
	}
	previous[pid] = current
	return cpuPercent
}

func threadCountOf(pid uint32) uint32 {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return 1
	}
	return uint32(len(entries))
}

func loadAverage() (one, five, fifteen float64, err error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("invalid loadavg format")
	}
	if one, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return 0, 0, 0, err
	}
	if five, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, 0, err
	}
	if fifteen, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return 0, 0, 0, err
	}
	return one, five, fifteen, nil
}

func systemMemory() (totalKB, freeKB, availableKB uint64, err error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0, 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB, err = parseMeminfoLine(line)
		case strings.HasPrefix(line, "MemFree:"):
			freeKB, err = parseMeminfoLine(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availableKB, err = parseMeminfoLine(line)
		}
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return totalKB, freeKB, availableKB, nil
}

func parseMeminfoLine(line string) (uint64, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid meminfo line: %q", line)
	}
	return strconv.ParseUint(parts[1], 10, 64)
}
