package workers

import (
	"chat-guard/contract"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

const probeText = "ping"

type HealthSnapshot struct {
	At              time.Time
	ClassifierUp    bool
	ClassifierError string
	CPUPercent      float64
	RSS             uint64
}

// HealthMonitoringWorker probes the classifier and samples the server
// process on every tick. onChange fires when classifier reachability flips,
// and once after the first probe.
type HealthMonitoringWorker struct {
	mu           sync.Mutex
	log          *slog.Logger
	classifier   contract.Classifier
	interval     time.Duration
	probeTimeout time.Duration
	onChange     func(up bool)
	last         HealthSnapshot
	probed       bool
	self         *process.Process
}

func NewHealthMonitoringWorker(log *slog.Logger, classifier contract.Classifier,
	interval, probeTimeout time.Duration, onChange func(up bool)) *HealthMonitoringWorker {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	return &HealthMonitoringWorker{
		log:          log,
		classifier:   classifier,
		interval:     interval,
		probeTimeout: probeTimeout,
		onChange:     onChange,
		self:         self,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	w.Probe(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

// Probe runs one health round and returns its snapshot.
func (w *HealthMonitoringWorker) Probe(ctx context.Context) HealthSnapshot {
	probeCtx, cancel := context.WithTimeout(ctx, w.probeTimeout)
	_, err := w.classifier.Classify(probeCtx, probeText)
	cancel()

	snapshot := HealthSnapshot{At: time.Now().UTC(), ClassifierUp: err == nil}
	if err != nil {
		snapshot.ClassifierError = err.Error()
	}
	if w.self != nil {
		if cpu, err := w.self.CPUPercent(); err == nil {
			snapshot.CPUPercent = cpu
		}
		if mem, err := w.self.MemoryInfo(); err == nil {
			snapshot.RSS = mem.RSS
		}
	}

	w.mu.Lock()
	changed := !w.probed || w.last.ClassifierUp != snapshot.ClassifierUp
	w.last, w.probed = snapshot, true
	w.mu.Unlock()

	w.log.Debug("Health probe",
		"classifier_up", snapshot.ClassifierUp,
		"cpu_percent", snapshot.CPUPercent,
		"rss_bytes", snapshot.RSS)
	if changed {
		if snapshot.ClassifierUp {
			w.log.Info("Classifier reachable")
		} else {
			w.log.Warn("Classifier unreachable, fallback policy applies", "error", err)
		}
		if w.onChange != nil {
			w.onChange(snapshot.ClassifierUp)
		}
	}
	return snapshot
}

func (w *HealthMonitoringWorker) Snapshot() HealthSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
