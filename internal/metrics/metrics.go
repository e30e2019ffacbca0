package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics is the pipeline's Prometheus instrumentation. Every instance owns its
// own registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Frames               prometheus.Counter
	Detections           prometheus.Counter
	Enqueued             prometheus.Counter
	DroppedJobs          prometheus.Counter
	Verifications        *prometheus.CounterVec
	ComparisonFailures   prometheus.Counter
	VerificationDuration prometheus.Histogram
	Dispatches           *prometheus.CounterVec
	CachedFaces          prometheus.Gauge
	MemUsage             prometheus.Gauge
	CPUUsage             prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facegate_frames_total",
			Help: "Frames processed by the capture loop",
		}),
		Detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facegate_detections_total",
			Help: "Faces returned by the detector",
		}),
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facegate_jobs_enqueued_total",
			Help: "Recognition jobs accepted by the queue",
		}),
		DroppedJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facegate_jobs_dropped_total",
			Help: "Recognition jobs dropped because the queue was full",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facegate_verifications_total",
			Help: "Completed verifications by verdict",
		}, []string{"verdict"}),
		ComparisonFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facegate_comparison_failures_total",
			Help: "Reference comparisons that failed and were counted as non-matches",
		}),
		VerificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "facegate_verification_seconds",
			Help:    "Time spent verifying one face against the corpus",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facegate_dispatches_total",
			Help: "Actuator commands by outcome (sent, simulated, dropped)",
		}, []string{"outcome"}),
		CachedFaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facegate_cached_faces",
			Help: "Faces currently held in the result cache",
		}),
		MemUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facegate_memory_usage_megabytes",
			Help: "Resident memory of the process in megabytes",
		}),
		CPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facegate_cpu_usage_percent",
			Help: "CPU usage of the process in percent",
		}),
	}
	m.registry.MustRegister(
		m.Frames, m.Detections, m.Enqueued, m.DroppedJobs,
		m.Verifications, m.ComparisonFailures, m.VerificationDuration,
		m.Dispatches, m.CachedFaces, m.MemUsage, m.CPUUsage,
	)
	return m
}

// Registry exposes the underlying registry (used by tests and the status API).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartProcessSampler updates the memory and CPU gauges every interval until ctx
// is cancelled.
func (m *Metrics) StartProcessSampler(ctx context.Context, interval time.Duration, log *zap.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("process sampler disabled", zap.Error(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleProcess(proc)
		}
	}
}

func (m *Metrics) sampleProcess(proc *process.Process) {
	if mem, err := proc.MemoryInfo(); err == nil {
		m.MemUsage.Set(float64(mem.RSS / 1024 / 1024))
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		m.CPUUsage.Set(math.Round(cpu*100) / 100)
	}
}
