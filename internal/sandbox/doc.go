/*
Package sandbox executes synthesized component artifacts in isolated goja runtimes.

# Overview

Each runtime is a fresh goja VM with:

  - CPU limits: a per-script timeout enforced through VM interrupts, plus
    cancellation through the caller's context
  - A recursion guard (maximum call stack size)
  - API restrictions: no require/process/module, timers are no-ops, and
    goja exposes no filesystem or network access
  - The component prelude: base classes Source, Sink, Transformer, Splitter
    and Merger that artifacts extend, with emit/persist/ack recording,
    passthrough defaults, and schema coercion

# Pool

Pool hands out runtimes for concurrent validations and resets each one on
release, so class declarations from one artifact never leak into the next.

	pool, _ := sandbox.NewPool(sandbox.DefaultConfig(), 4)
	defer pool.Close()

	result, err := pool.Execute(ctx, script, map[string]string{"__bpConfigJSON": "{}"})
	if errors.Is(err, sandbox.ErrExecutionTimeout) {
		// the artifact ran too long
	}
*/
package sandbox
