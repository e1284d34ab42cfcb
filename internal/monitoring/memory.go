package monitoring

import (
	"runtime"
	"time"
)

// MemoryStats is a point-in-time view of the process runtime
type MemoryStats struct {
	HeapAlloc    uint64    `json:"heap_alloc_bytes"`
	HeapInuse    uint64    `json:"heap_inuse_bytes"`
	Sys          uint64    `json:"sys_bytes"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`
	LastGC       time.Time `json:"last_gc,omitempty"`
}

// ReadMemoryStats samples the runtime. It stops the world briefly, so call it
// from health checks rather than per request.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MemoryStats{
		HeapAlloc:    m.HeapAlloc,
		HeapInuse:    m.HeapInuse,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if m.LastGC > 0 {
		stats.LastGC = time.Unix(0, int64(m.LastGC)).UTC()
	}

	return stats
}
