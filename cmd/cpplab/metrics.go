package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cpplab/cpplab/builder"
	"github.com/cpplab/cpplab/runner"
	"github.com/cpplab/cpplab/store"
	"github.com/cpplab/cpplab/worker"
)

const metricsNamespace = "cpplab"

var (
	// 1ms -> 10s
	timeBuckets = []float64{
		0.001, 0.002, 0.005, 0.008, 0.010, 0.025, 0.050, 0.075, 0.1, 0.2,
		0.4, 0.6, 0.8, 1.0, 1.5, 2, 5, 10,
	}

	buildCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "build_total",
		Help:      "Number of build requests by outcome",
	}, []string{"outcome"})

	runCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "run_total",
		Help:      "Number of run requests by outcome",
	}, []string{"outcome"})

	runTimeHist = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "run_time_seconds",
		Help:      "Histogram for the program running time",
		Buckets:   timeBuckets,
	})

	storeRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "artifact_current_total",
		Help:      "Total number of artifacts currently in the store",
	})
)

func init() {
	prometheus.MustRegister(buildCount, runCount)
	prometheus.MustRegister(runTimeHist)
	prometheus.MustRegister(storeRecords)
}

func execObserverWith(st *store.Store) func(worker.Response) {
	return func(res worker.Response) {
		if res.Build != nil {
			buildCount.WithLabelValues(buildOutcome(res.Build.Error)).Inc()
		}
		if res.Run != nil {
			runCount.WithLabelValues(runOutcome(res.Run.Error)).Inc()
			if res.Run.Error == nil {
				runTimeHist.Observe(res.Run.RunTime.Seconds())
			}
		}
		storeRecords.Set(float64(st.Len()))
	}
}

func buildOutcome(err error) string {
	var ce *builder.CompileError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ce):
		return "compile_error"
	}
	return "error"
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, runner.ErrNotFound):
		return "not_found"
	case errors.Is(err, runner.ErrExpired):
		return "expired"
	case errors.Is(err, runner.ErrTimeout):
		return "timeout"
	}
	return "error"
}
