package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric name.
const Namespace = "casa"

// Metric names
const (
	MetricDoECases     = "doe_cases_total"
	MetricProxyFits    = "proxy_fits_total"
	MetricMCSamples    = "mc_samples_total"
	MetricCaseRuns     = "case_runs_total"
	MetricRunDuration  = "case_run_duration_seconds"
	MetricLMIterations = "lm_evaluations_total"
	MetricResidualNorm = "calibration_residual_norm"
)

// MustNewCollector is NewCollector that panics on registration errors.
func MustNewCollector(reg prometheus.Registerer) *Collector {
	c, err := NewCollector(reg)
	if err != nil {
		panic(err)
	}
	return c
}
