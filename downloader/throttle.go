package downloader

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientResources means the host is too busy to start a download.
var ErrInsufficientResources = errors.New("insufficient system resources")

// Thresholds are the minimum free resources required before a download starts.
type Thresholds struct {
	IdleCPU  float64
	FreeMem  int64
	FreeDisk int64
}

// checkResources verifies the host has enough idle CPU, free memory and free
// disk under dir to start a new download.
func checkResources(th Thresholds, dir string, logger *slog.Logger) error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		logger.Warn("could not get CPU usage", "error", err)
	} else if len(p) > 0 && p[0] > (100.0-th.IdleCPU) {
		return fmt.Errorf("%w: not enough idle CPU (usage %.2f%%, idle threshold %.2f%%)", ErrInsufficientResources, p[0], th.IdleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("could not get memory usage", "error", err)
	} else if vm.Available < uint64(th.FreeMem) {
		return fmt.Errorf("%w: not enough free memory (available %d, required %d)", ErrInsufficientResources, vm.Available, th.FreeMem)
	}

	d, err := disk.Usage(dir)
	if err != nil {
		logger.Warn("could not get disk usage", "dir", dir, "error", err)
	} else if d.Free < uint64(th.FreeDisk) {
		return fmt.Errorf("%w: not enough free disk space (available %d, required %d)", ErrInsufficientResources, d.Free, th.FreeDisk)
	}
	return nil
}
