// Package metrics centralizes the Prometheus registrations shared across
// components, following the counter-construction idiom in the teacher's
// internal/mapcache/service.go (cacheMetrics).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Worker holds the render pipeline's Prometheus instruments.
type Worker struct {
	RenderDuration    prometheus.Histogram
	TranscodeDuration prometheus.Histogram
	JobsProcessed     *prometheus.CounterVec
	JobErrors         *prometheus.CounterVec
}

func NewWorkerMetrics() *Worker {
	w := &Worker{
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "render_stack_worker_render_seconds",
			Help: "Time spent producing a metatile render result.",
		}),
		TranscodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "render_stack_worker_transcode_seconds",
			Help: "Time spent transcoding a rendered metatile to its output formats.",
		}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "render_stack_worker_jobs_total",
			Help: "Count of jobs processed by status.",
		}, []string{"status"}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "render_stack_worker_job_errors_total",
			Help: "Count of job processing errors by stage.",
		}, []string{"stage"}),
	}
	registerAll(w.RenderDuration, w.TranscodeDuration, w.JobsProcessed, w.JobErrors)
	return w
}

// Storage holds the storage node's Prometheus instruments.
type Storage struct {
	RequestDuration *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

func NewStorageMetrics() *Storage {
	s := &Storage{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "render_stack_storage_request_seconds",
			Help: "Storage node request latency by method.",
		}, []string{"method"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "render_stack_storage_cache_hits_total",
			Help: "Count of GET requests served from an existing, unexpired tile.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "render_stack_storage_cache_misses_total",
			Help: "Count of GET requests for a missing or expired tile.",
		}),
	}
	registerAll(s.RequestDuration, s.CacheHits, s.CacheMisses)
	return s
}

// registerAll registers each collector against the default registry,
// tolerating AlreadyRegisteredError so constructing metrics more than once
// in the same process (as worker tests do) doesn't panic the way a bare
// MustRegister would.
func registerAll(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}
}
