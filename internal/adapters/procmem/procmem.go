// Package procmem reads the resident memory of the current process.
package procmem

import (
	"fmt"
	"runtime"

	"github.com/prometheus/procfs"
)

// Reader samples resident set size from /proc/self/stat. Where procfs is
// unavailable it falls back to the bytes the Go runtime obtained from the OS.
type Reader struct {
	self func() (procfs.Proc, error)
}

// New returns a Reader for the current process.
func New() *Reader {
	return &Reader{self: procfs.Self}
}

// ResidentMemory returns the resident memory in bytes.
func (r *Reader) ResidentMemory() (uint64, error) {
	proc, err := r.self()
	if err != nil {
		return runtimeSys(), nil
	}

	stat, err := proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("read process stat: %w", err)
	}

	rss := stat.ResidentMemory()
	if rss < 0 {
		return 0, fmt.Errorf("negative resident memory %d", rss)
	}
	return uint64(rss), nil
}

func runtimeSys() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}
