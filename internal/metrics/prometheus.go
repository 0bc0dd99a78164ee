package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all apflash metrics.
type Registry struct {
	// Detection
	NodesDetected  *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	ARPRepliesSent prometheus.Counter

	// Delivery
	BytesSent        *prometheus.CounterVec
	RetransmitsTotal *prometheus.CounterVec
	FlashesStarted   *prometheus.CounterVec
	FlashesCompleted *prometheus.CounterVec
	NodesFlashed     prometheus.Gauge

	// Registry
	NodesActive prometheus.Gauge
	MACPoolFree prometheus.Gauge

	// System
	SupervisorTicks prometheus.Counter
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.NodesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_nodes_detected_total",
		Help: "Total nodes detected, by router profile class",
	}, []string{"class"})

	r.FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_frames_dropped_total",
		Help: "Total frames dropped by reason",
	}, []string{"reason"})

	r.ARPRepliesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apflash_arp_replies_sent_total",
		Help: "Total ARP replies sent while impersonating flash targets",
	})

	r.BytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_bytes_sent_total",
		Help: "Total image bytes sent over TFTP, by node class",
	}, []string{"class"})

	r.RetransmitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_retransmits_total",
		Help: "Total TFTP DATA retransmissions, by node class",
	}, []string{"class"})

	r.FlashesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_flashes_started_total",
		Help: "Total flash attempts started, by node class",
	}, []string{"class"})

	r.FlashesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apflash_flashes_completed_total",
		Help: "Total flash attempts that reached the completion heuristic, by node class",
	}, []string{"class"})

	r.NodesFlashed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apflash_nodes_flashed_total",
		Help: "Running count of nodes successfully flashed this session",
	})

	r.NodesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apflash_nodes_active",
		Help: "Current number of nodes in the registry",
	})

	r.MACPoolFree = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apflash_mac_pool_free",
		Help: "Remaining locally-administered MAC addresses available for allocation",
	})

	r.SupervisorTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apflash_supervisor_ticks_total",
		Help: "Total supervisor slow ticks (read timeouts with no frame)",
	})

	return r
}

// RecordDetection records a node detection event for the given profile class.
func (r *Registry) RecordDetection(class string) {
	r.NodesDetected.WithLabelValues(class).Inc()
}

// RecordFrameDropped records a dropped frame with its reason.
func (r *Registry) RecordFrameDropped(reason string) {
	r.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordFlashComplete increments both the per-class completion counter and
// the running flashed-node gauge.
func (r *Registry) RecordFlashComplete(class string) {
	r.FlashesCompleted.WithLabelValues(class).Inc()
	r.NodesFlashed.Inc()
}
