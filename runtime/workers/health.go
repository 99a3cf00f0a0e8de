package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"rentchat/contract"
)

var _ contract.Worker = (*HealthWorker)(nil)

// HealthWorker periodically logs process-level vitals (RSS, CPU, OS
// status) plus the number of online users, so operators can correlate
// delivery problems with resource pressure without extra tooling.
type HealthWorker struct {
	log      *slog.Logger
	registry interface{ Online() int }
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, registry interface{ Online() int }, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, registry: registry, interval: interval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	w.log.Info("Starting health worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Health",
				"online_users", w.registry.Online(),
				"ram_bytes", rss,
				"cpu_percent", cpu,
				"pid_status", status)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
