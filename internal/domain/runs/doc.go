// Package runs executes pipeline runs on behalf of the API.
//
// The Manager wraps a pipeline with the concerns a server needs around a
// run: a bounded deadline, a tracing span, active-run accounting, report
// persistence and cancellation by run id. Runs can execute synchronously
// (Execute) or in the background (Start); both register the run as soon as
// the pipeline assigns its id.
package runs
