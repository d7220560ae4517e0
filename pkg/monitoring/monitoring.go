// Package monitoring serves the runtime metrics and the profiler.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retrohost/retrohost/pkg/config"
	"github.com/retrohost/retrohost/pkg/logger"
)

const namespace = "retrohost"

// Metrics are the counters of a running session.
type Metrics struct {
	Frames       prometheus.Counter
	FrameTime    prometheus.Histogram
	FrameSleep   prometheus.Histogram
	EnvCalls     *prometheus.CounterVec
	AudioDropped prometheus.Counter
	Saves        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "The number of emulated frames.",
		}),
		FrameTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_seconds",
			Help:      "Time spent in the core run call.",
			Buckets:   []float64{.001, .002, .004, .008, .012, .016, .020, .033, .050, .1},
		}),
		FrameSleep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_sleep_seconds",
			Help:      "Time slept between frames.",
			Buckets:   []float64{0, .001, .004, .008, .012, .016, .020, .033},
		}),
		EnvCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "env_calls_total",
			Help:      "Environment calls of the core.",
		}, []string{"cmd", "handled"}),
		AudioDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_dropped_samples_total",
			Help:      "Audio samples lost on full buffers.",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save and load state calls.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Frames, m.FrameTime, m.FrameSleep, m.EnvCalls, m.AudioDropped, m.Saves)
	}
	return m
}

// Frame records one run of the core.
func (m *Metrics) Frame(work, sleep time.Duration) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.FrameTime.Observe(work.Seconds())
	m.FrameSleep.Observe(sleep.Seconds())
}

func (m *Metrics) Env(cmd string, handled bool) {
	if m == nil {
		return
	}
	m.EnvCalls.WithLabelValues(cmd, fmt.Sprint(handled)).Inc()
}

func (m *Metrics) Save(op string, err error) {
	if m == nil {
		return
	}
	res := "ok"
	if err != nil {
		res = "error"
	}
	m.Saves.WithLabelValues(op, res).Inc()
}

// Monitoring is an HTTP server with the metrics and pprof handlers.
type Monitoring struct {
	conf     config.Monitoring
	registry *prometheus.Registry
	metrics  *Metrics
	server   *http.Server
	listener net.Listener
	log      *logger.Logger
}

// New creates new monitoring service.
// The metrics are always collected, the server only serves them when enabled.
func New(conf config.Monitoring, log *logger.Logger) *Monitoring {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Monitoring{
		conf:     conf,
		registry: reg,
		metrics:  NewMetrics(reg),
		log:      log.Module("monitoring"),
	}
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m
}

func (m *Monitoring) Metrics() *Metrics { return m.metrics }

// Handler returns the routes of the enabled features.
func (m *Monitoring) Handler() http.Handler {
	h := http.NewServeMux()

	if m.conf.ProfilingEnabled {
		prefix := m.conf.URLPrefix + "/debug/pprof"
		m.log.Info().Msgf("Profiling is enabled at %v", m.server.Addr+prefix)
		h.HandleFunc(prefix+"/", pprof.Index)
		h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
		h.HandleFunc(prefix+"/profile", pprof.Profile)
		h.HandleFunc(prefix+"/symbol", pprof.Symbol)
		h.HandleFunc(prefix+"/trace", pprof.Trace)
		// named profiles under a custom prefix need explicit routes
		for _, p := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(prefix+"/"+p, pprof.Handler(p))
		}
	}

	if m.conf.MetricEnabled {
		path := m.conf.URLPrefix + "/metrics"
		m.log.Info().Msgf("Prometheus metric is enabled at %v", m.server.Addr+path)
		h.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}

	return h
}

// Run starts the server in the background.
func (m *Monitoring) Run() {
	if !m.conf.IsEnabled() {
		return
	}
	l, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		m.log.Error().Err(err).Msg("monitoring server")
		return
	}
	m.listener = l
	m.log.Info().Msgf("Starting monitoring server at %v", l.Addr())
	go func() {
		if err := m.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("monitoring server")
		}
	}()
}

// Addr is the address of the running server.
func (m *Monitoring) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	if m.listener == nil {
		return nil
	}
	m.log.Info().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
