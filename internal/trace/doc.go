// Package trace records task runtime events: task state transitions,
// processor lifecycle points and liveness heartbeats. Events flow into a
// stream (immediate write), a ring (last N in memory, dumpable post
// mortem) or both. Text, NDJSON and msgpack encodings are supported.
package trace
