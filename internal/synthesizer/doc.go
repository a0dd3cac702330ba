/*
Package synthesizer produces component artifacts from contracts.

A Synthesizer is an external collaborator: it may be slow, it may fail and it
must be safe to call again. Three implementations are provided.

  - Template renders a deterministic artifact from the contract alone and
    needs no network. It backs offline runs and tests.
  - HTTP calls a remote code generation service through a rate limiter and a
    circuit breaker.
  - Retrying wraps another Synthesizer with a per-attempt timeout and
    exponential backoff between attempts.

Every attempt that exceeds its time budget surfaces as ErrTimeout so the
caller can report it as a finding instead of a crash.
*/
package synthesizer
