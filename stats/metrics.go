// Package stats exports Prometheus metrics for a surface test run.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hdvalidator/surface"
)

const Namespace = "hdvalidator"

// Result labels of DiskOpCounter.
const (
	ResultOK    = "ok"
	ResultMedia = "media"
	ResultFatal = "fatal"
)

var (
	Gather = prometheus.NewRegistry()

	DiskOpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "disk",
			Name:      "ops_total",
			Help:      "Counter of device calls by operation and result.",
		}, []string{"op", "result"})

	DiskBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "disk",
			Name:      "bytes_total",
			Help:      "Bytes transferred by successful device calls.",
		}, []string{"op"})

	DiskOpHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "disk",
			Name:      "op_seconds",
			Help:      "Bucketed histogram of device call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"})

	BlockCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "test",
			Name:      "blocks_total",
			Help:      "Counter of tested grid blocks by outcome.",
		}, []string{"status"})

	PositionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "test",
			Name:      "position_bytes",
			Help:      "Byte offset of the most recent device call.",
		})

	SpeedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "test",
			Name:      "speed_bytes_per_second",
			Help:      "Average progress speed since the test started.",
		})

	RunInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "test",
			Name:      "info",
			Help:      "Set to 1 for the running test.",
		}, []string{"run_id", "test", "device"})
)

func init() {
	Gather.MustRegister(DiskOpCounter)
	Gather.MustRegister(DiskBytesCounter)
	Gather.MustRegister(DiskOpHistogram)
	Gather.MustRegister(BlockCounter)
	Gather.MustRegister(PositionGauge)
	Gather.MustRegister(SpeedGauge)
	Gather.MustRegister(RunInfo)
	Gather.MustRegister(collectors.NewGoCollector())
	Gather.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// RecordBlock counts one finished grid block.
func RecordBlock(status surface.BlockStatus) {
	BlockCounter.WithLabelValues(status.String()).Inc()
}

// RecordProgress updates the position and speed gauges.
func RecordProgress(position uint64, bytesPerSecond float64) {
	PositionGauge.Set(float64(position))
	SpeedGauge.Set(bytesPerSecond)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case surface.IsTransient(err):
		return ResultMedia
	default:
		return ResultFatal
	}
}
