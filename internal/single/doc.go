// Package single owns the single-instance decision and recovery protocol.
//
// Ownership boundary:
// - first-vs-secondary role decision (TrySend)
// - stale-instance recovery (kill-and-retake)
// - primary lifecycle (channel server start, batch republication)
//
// The exclusivity oracle and the forwarding channel are independent
// primitives, so mutual exclusion here is best-effort rather than
// linearizable: two launchers can both observe "not first", both fail to
// reach a primary, and both run recovery concurrently. That race is part
// of the protocol; callers get at-most-one *responsive* primary, with the
// recovery path as the tiebreaker.
package single
