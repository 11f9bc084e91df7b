// Package engine provides the shared execution context of the socket engine.
//
// An Engine bundles what every endpoint and listener of a process shares:
//
//   - a worker pool (sourcegraph/conc) that processes incoming requests, unbounded by
//     default and bounded with EngineConfig.Workers
//   - the pending-call table used to correlate replies, swept by a janitor that drops
//     calls nobody awaited before their deadline
//   - the shutdown registry, Shutdown kills every registered endpoint and listener in
//     reverse registration order
//   - a VictoriaMetrics set with connection, reconnect, keepalive and call counters
//
// Faults that require handling but had no event subscriber end up in Fault, which
// forwards them to EngineConfig.OnUnhandledFault or logs them.
package engine
