/*
Package resilience provides the circuit breaker that guards calls to the
remote synthesizer.

After FailureThreshold consecutive failures the breaker opens and rejects
calls with ErrCircuitOpen. Once OpenTimeout has elapsed it admits up to
Probes calls in the half-open state; enough successes close it again and a
single failure reopens it.

	breaker := resilience.New("synthesizer", resilience.Settings{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	})

	source, err := resilience.Do(ctx, breaker, func(ctx context.Context) (string, error) {
		return client.call(ctx, req)
	})

A call that fails only because the caller's context ended is not counted
against the collaborator.
*/
package resilience
