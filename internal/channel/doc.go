// Package channel owns the per-application forwarding channel.
//
// Ownership boundary:
// - frame/header primitives and TLV argument payloads
// - unix-socket client endpoint (secondary side)
// - unix-socket server endpoint (primary side)
//
// The channel carries ordered argument batches from a launching secondary
// to the running primary. It does not decide instance roles; that belongs
// to package single.
package channel
