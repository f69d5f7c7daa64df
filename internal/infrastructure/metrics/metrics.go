// Package metrics exposes engine and stream activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zono819/tickpulse/internal/domain/protocol"
)

// DefaultAverageWindow is the number of batches in the rolling batch size average
const DefaultAverageWindow = 120

// Collector records engine and hub activity.
// It implements engine.Recorder and wsserver.Recorder.
type Collector struct {
	registry *prometheus.Registry

	ticks          prometheus.Counter
	commands       *prometheus.CounterVec
	failures       *prometheus.CounterVec
	batches        prometheus.Counter
	batchSize      prometheus.Histogram
	trackedSymbols prometheus.Gauge
	clients        prometheus.Gauge
	feedRounds     prometheus.Counter

	mu      sync.Mutex
	avgSize *movingaverage.MovingAverage
}

// New creates a collector registered on its own registry
func New(namespace string, window int) *Collector {
	if window <= 0 {
		window = DefaultAverageWindow
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_processed_total",
			Help:      "Raw ticks applied to symbol state.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Engine commands handled, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_failures_total",
			Help:      "Engine commands that produced an error event, by kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_emitted_total",
			Help:      "Batch updates emitted by the engine.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_symbols",
			Help:      "Symbols per emitted batch update.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		}),
		trackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_symbols",
			Help:      "Symbols with engine state.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients.",
		}),
		feedRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rounds_total",
			Help:      "Tick rounds received from the feed.",
		}),
		avgSize: movingaverage.New(window),
	}

	c.registry.MustRegister(
		c.ticks,
		c.commands,
		c.failures,
		c.batches,
		c.batchSize,
		c.trackedSymbols,
		c.clients,
		c.feedRounds,
	)
	return c
}

// Registry returns the registry holding the collector's metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) CommandHandled(kind protocol.Kind) {
	c.commands.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) CommandFailed(kind protocol.Kind) {
	c.failures.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) TicksProcessed(n int) {
	if n > 0 {
		c.ticks.Add(float64(n))
	}
}

func (c *Collector) BatchEmitted(symbols, tracked int) {
	c.batches.Inc()
	c.batchSize.Observe(float64(symbols))
	c.trackedSymbols.Set(float64(tracked))

	c.mu.Lock()
	c.avgSize.Add(float64(symbols))
	c.mu.Unlock()
}

// ClientConnected increments the connected client gauge
func (c *Collector) ClientConnected() {
	c.clients.Inc()
}

// ClientDisconnected decrements the connected client gauge
func (c *Collector) ClientDisconnected() {
	c.clients.Dec()
}

// FeedRound counts one tick round received from the feed
func (c *Collector) FeedRound() {
	c.feedRounds.Inc()
}

// AverageBatchSize returns the rolling average of symbols per batch
func (c *Collector) AverageBatchSize() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.avgSize.Count() == 0 {
		return 0
	}
	return c.avgSize.Avg()
}
