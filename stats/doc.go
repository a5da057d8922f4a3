// Package stats aggregates frame timings into the periodic stats line the
// demo programs show and log, and exports them as Prometheus metrics.
package stats
