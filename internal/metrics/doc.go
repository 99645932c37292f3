// Package metrics records request/response round-trip latency.
//
// Round trips are only meaningful when a connection has at most one request in
// flight, so the benchmark records them in request-response mode only. In
// pipelined mode the report relies on aggregate counters instead.
//
//	collector := metrics.NewCollector()
//	collector.Record(workerIndex, rtt)
//	stats := collector.Stats()
//
// # Thread Safety
//
// The Collector spreads recordings over a fixed number of mutex-guarded
// hdrhistogram shards keyed by a caller-supplied hint. Stats merges the shards
// and may be called while recording continues.
package metrics
