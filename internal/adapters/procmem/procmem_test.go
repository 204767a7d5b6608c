package procmem

import (
	"errors"
	"testing"

	"github.com/prometheus/procfs"
)

func TestReader_ResidentMemory(t *testing.T) {
	rss, err := New().ResidentMemory()
	if err != nil {
		t.Fatalf("resident memory: %v", err)
	}
	if rss == 0 {
		t.Fatal("expected a non-zero resident size for a running process")
	}
}

func TestReader_FallsBackWithoutProcfs(t *testing.T) {
	r := &Reader{self: func() (procfs.Proc, error) {
		return procfs.Proc{}, errors.New("no /proc")
	}}

	rss, err := r.ResidentMemory()
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if rss == 0 {
		t.Fatal("expected runtime memory stats as fallback")
	}
}
