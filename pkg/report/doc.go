// Package report is the single error-reporting and observation surface of the
// kiln runtime.
//
// Every recoverable failure (evaluation errors, hook errors, handler panics,
// duplicate keys, runaway update loops) is delivered to a Reporter as an
// *Error. Nothing in the runtime panics across the loop boundary; callers
// that want failures surfaced elsewhere attach their own Reporter:
//
//	rep := report.Multi{
//	    report.NewLogReporter(logger),
//	    report.ReporterFunc(func(e *report.Error) { failures = append(failures, e) }),
//	}
//
// Observer receives flush and render timings. The telemetry package provides
// Prometheus and OpenTelemetry observers.
package report
