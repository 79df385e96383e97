/*
Package observability turns the engine's event stream into Prometheus metrics.

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.Attach(orchestrator.Events())
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
*/
package observability
