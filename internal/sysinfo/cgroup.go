// Package sysinfo reads container resource limits from the cgroup
// filesystem, for use by the admission guard when no explicit memory
// limit is configured.
package sysinfo

import (
	"os"
	"strconv"
	"strings"
)

// MemoryLimit returns the container memory limit in bytes, trying cgroup v2
// first and falling back to cgroup v1. Returns 0 with a nil error when no
// limit is detectable (bare metal, or a cgroup-less environment).
func MemoryLimit() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		if limitStr != "max" {
			return strconv.ParseInt(limitStr, 10, 64)
		}
		return 0, nil
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	}

	return 0, nil
}

// MaxConnectionsForMemory estimates a safe connection ceiling from a memory
// limit, reserving headroom for the Go runtime and the in-memory record
// table. bytesPerConnection approximates one session's buffers (read/write
// frame scratch space); callers without a better estimate can pass 0 to use
// a conservative built-in default.
func MaxConnectionsForMemory(memoryLimitBytes int64, bytesPerConnection int64) int {
	const runtimeOverheadBytes = 128 * 1024 * 1024
	const defaultBytesPerConnection = 64 * 1024

	if memoryLimitBytes <= 0 {
		return 10000
	}
	if bytesPerConnection <= 0 {
		bytesPerConnection = defaultBytesPerConnection
	}

	available := memoryLimitBytes - runtimeOverheadBytes
	if available < 0 {
		available = memoryLimitBytes / 2
	}

	maxConns := int(available / bytesPerConnection)
	if maxConns < 100 {
		maxConns = 100
	}
	if maxConns > 50000 {
		maxConns = 50000
	}
	return maxConns
}
