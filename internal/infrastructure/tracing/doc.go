/*
Package tracing provides lightweight request and run tracing.

Spans are written to the structured log by a single collector goroutine.
HTTP requests get one span each; pipeline runs get a pipeline.run span with
a pipeline.component child per component. Trace context propagates through
the X-Trace-ID and X-Span-ID headers on incoming requests and on outgoing
synthesizer calls.

# Usage

	tracer := tracing.New("bpforge", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "pipeline.run")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("system", bp.System.Name)
*/
package tracing
