package core

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var bootEpochSecondsOnce = sync.OnceValue(resolveBootEpochSeconds)

// BootEpochSeconds returns the system boot time in seconds since the
// UNIX epoch. The value is resolved once and cached: it prefers
// /proc/stat's btime field, falls back to now-minus-uptime, and as a
// last resort returns the current time (incorrect, but never fails).
func BootEpochSeconds() int64 {
	return bootEpochSecondsOnce()
}

func resolveBootEpochSeconds() int64 {
	if btime, ok := readBtimeFromProcStat("/proc/stat"); ok {
		return btime
	}
	if uptime, ok := readUptimeSeconds("/proc/uptime"); ok {
		return time.Now().Unix() - int64(uptime)
	}
	return time.Now().Unix()
}

func readBtimeFromProcStat(path string) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "btime ") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if btime, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					return btime, true
				}
			}
		}
	}
	return 0, false
}

func readUptimeSeconds(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	uptime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return uptime, true
}

// BootNsToEpochMs converts nanoseconds since boot (as produced by
// bpf_ktime_get_ns() in the tracer) to milliseconds since the UNIX
// epoch.
func BootNsToEpochMs(nsSinceBoot uint64) uint64 {
	bootMs := BootEpochSeconds() * 1000
	offsetMs := int64(nsSinceBoot / 1_000_000)
	return uint64(bootMs + offsetMs)
}

// NowEpochMs returns the current time in milliseconds since the UNIX
// epoch.
func NowEpochMs() uint64 {
	return uint64(time.Now().UnixMilli())
}
