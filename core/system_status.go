package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SystemStatus aggregates operational state for the admin dashboard.
type SystemStatus struct {
	Counts struct {
		Accounts int `json:"accounts"`
		Students int `json:"students"`
	} `json:"counts"`
	Dependencies struct {
		Database string `json:"database"`
		Redis    string `json:"redis"`
	} `json:"dependencies"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// CollectSystemStatus gathers counts and dependency health, best-effort.
func CollectSystemStatus(ctx context.Context, accounts AccountRepository, students StudentRepository, redisClient *redis.Client, startedAt time.Time) (SystemStatus, error) {
	var st SystemStatus

	st.Dependencies.Database = "ok"
	if n, err := accounts.Count(ctx); err == nil {
		st.Counts.Accounts = n
	} else {
		st.Dependencies.Database = "error"
	}
	if n, err := students.Count(ctx); err == nil {
		st.Counts.Students = n
	} else {
		st.Dependencies.Database = "error"
	}

	st.Dependencies.Redis = "disabled"
	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err == nil {
			st.Dependencies.Redis = "ok"
		} else {
			st.Dependencies.Redis = "error"
		}
	}

	// Memory (best-effort from /proc/meminfo)
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}

	return st, nil
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		// convert KiB -> bytes
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
