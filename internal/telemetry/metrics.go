// Package telemetry exports generation progress as structured logs and
// Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lamarck/internal/evo"
)

// Metrics is an evo.Observer backed by its own Prometheus registry.
type Metrics struct {
	registry      *prometheus.Registry
	generations   *prometheus.CounterVec
	generation    *prometheus.GaugeVec
	bestFitness   *prometheus.GaugeVec
	meanFitness   *prometheus.GaugeVec
	minFitness    *prometheus.GaugeVec
	learningDelta *prometheus.HistogramVec
	duration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	labels := []string{"experiment_id"}
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lamarck_generations_committed_total"}, labels),
		generation:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "lamarck_generation_index"}, labels),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "lamarck_population_best_fitness"}, labels),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "lamarck_population_mean_fitness"}, labels),
		minFitness:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "lamarck_population_min_fitness"}, labels),
		learningDelta: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lamarck_learning_delta",
			Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lamarck_generation_duration_seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, labels),
	}
	m.registry.MustRegister(m.generations, m.generation, m.bestFitness, m.meanFitness, m.minFitness, m.learningDelta, m.duration)
	return m
}

func (m *Metrics) ObserveGeneration(r evo.GenerationReport) {
	labels := prometheus.Labels{"experiment_id": r.ExperimentID}
	m.generations.With(labels).Inc()
	m.generation.With(labels).Set(float64(r.GenerationIndex))
	if len(r.Fitness) > 0 {
		m.bestFitness.With(labels).Set(floats.Max(r.Fitness))
		m.meanFitness.With(labels).Set(stat.Mean(r.Fitness, nil))
		m.minFitness.With(labels).Set(floats.Min(r.Fitness))
	}
	for _, rec := range r.Learning {
		m.learningDelta.With(labels).Observe(rec.LearningDelta)
	}
	m.duration.With(labels).Observe(r.Duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
