// Package telemetry exports kiln runtime activity to Prometheus,
// OpenTelemetry and zerolog.
//
// Metrics and Tracer implement both report.Observer and report.Reporter,
// so they attach to an App through its configuration:
//
//	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	app := kiln.New(kiln.Config{
//	    Observer: metrics,
//	    Reporter: report.Multi{report.NewLogReporter(nil), metrics},
//	})
package telemetry
