package worker

import (
	"os"
	"runtime"
)

// MemoryLimitExceeded reports whether the process's resident set size
// estimate (via Go's own heap stats, standing in for the original's
// /proc/self/status VmRSS read) exceeds limitBytes. A zero limit disables
// the check. Matches worker.py's self-restart-on-memory-pressure guard.
func MemoryLimitExceeded(limitBytes uint64) bool {
	if limitBytes == 0 {
		return false
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys > limitBytes
}

// ForceGC runs a garbage collection pass, called by the worker loop every
// GCInterval jobs the way worker.py calls gc.collect() every 10 jobs.
func ForceGC() {
	runtime.GC()
}

// Exit terminates the process with the given code. The worker loop does
// not call it: when the memory watchdog trips, Worker.Run returns nil and
// leaves exiting to its caller.
func Exit(code int) {
	os.Exit(code)
}
