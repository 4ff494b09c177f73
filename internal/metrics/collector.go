// Package metrics exposes Prometheus instrumentation for design generation,
// proxy fitting, Monte-Carlo sampling and calibration runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the scenario metrics. A nil *Collector records nothing.
type Collector struct {
	doeCases     *prometheus.CounterVec
	proxyFits    *prometheus.CounterVec
	mcSamples    *prometheus.CounterVec
	caseRuns     *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lmIterations prometheus.Counter
	residualNorm prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		doeCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricDoECases,
			Help:      "Cases generated by design of experiments, by design family.",
		}, []string{"family"}),
		proxyFits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricProxyFits,
			Help:      "Response surface fits, by outcome.",
		}, []string{"outcome"}),
		mcSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricMCSamples,
			Help:      "Monte-Carlo samples evaluated on a proxy, by algorithm.",
		}, []string{"algorithm"}),
		caseRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricCaseRuns,
			Help:      "Cases handed to the run manager, by final state.",
		}, []string{"state"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      MetricRunDuration,
			Help:      "Wall time of one simulator run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		lmIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      MetricLMIterations,
			Help:      "Levenberg-Marquardt function evaluations.",
		}),
		residualNorm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      MetricResidualNorm,
			Help:      "Residual norm of the latest calibration evaluation.",
		}),
	}
	for _, m := range []prometheus.Collector{
		c.doeCases, c.proxyFits, c.mcSamples, c.caseRuns, c.runDuration, c.lmIterations, c.residualNorm,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordDoE counts n generated cases of a design family.
func (c *Collector) RecordDoE(family string, n int) {
	if c == nil {
		return
	}
	c.doeCases.WithLabelValues(family).Add(float64(n))
}

// RecordProxyFit counts a proxy fit.
func (c *Collector) RecordProxyFit(err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.proxyFits.WithLabelValues(outcome).Inc()
}

// RecordMCSamples counts n evaluated Monte-Carlo samples.
func (c *Collector) RecordMCSamples(algorithm string, n int) {
	if c == nil {
		return
	}
	c.mcSamples.WithLabelValues(algorithm).Add(float64(n))
}

// RecordCaseRun counts one simulator run and its duration.
func (c *Collector) RecordCaseRun(state string, d time.Duration) {
	if c == nil {
		return
	}
	c.caseRuns.WithLabelValues(state).Inc()
	c.runDuration.Observe(d.Seconds())
}

// RecordIteration records one calibration function evaluation.
func (c *Collector) RecordIteration(norm float64) {
	if c == nil {
		return
	}
	c.lmIterations.Inc()
	c.residualNorm.Set(norm)
}
