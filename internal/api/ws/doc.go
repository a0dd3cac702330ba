// Package ws streams blueprint runs over WebSocket.
//
// Message Types (Client → Server):
//   - run: run the blueprint in "blueprint", with optional format, threshold, max_passes
//   - cancel: cancel the run named by run_id
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - system: connection greeting
//   - event: one pipeline event (run_started, compiled, synthesized, validated,
//     transition, component_finished, run_finished)
//   - complete: the full run result, with "error" set when the run did not finish cleanly
//   - pong: reply to ping
//   - error: the request could not be handled
//
// Runs started on a connection are cancelled when it closes.
//
// Example Usage:
//
//	handler := ws.NewHandler(runManager, metrics, origins, logger)
//	router.GET("/v1/stream", handler.HandleConnection)
package ws
