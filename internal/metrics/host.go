package metrics

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSnapshot describes the machine and process at one point in time. Fields
// the platform cannot report stay zero.
type HostSnapshot struct {
	CPUCores          int
	CPUPercent        float64
	MemoryTotal       uint64
	MemoryAvailable   uint64
	MemoryUsedPercent float64
	ProcessRSS        uint64
	Goroutines        int
}

// SnapshotHost reads host and process resource usage.
func SnapshotHost(ctx context.Context) HostSnapshot {
	s := HostSnapshot{
		CPUCores:   runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		s.MemoryTotal = vm.Total
		s.MemoryAvailable = vm.Available
		s.MemoryUsedPercent = vm.UsedPercent
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			s.ProcessRSS = mi.RSS
		}
	}
	return s
}
