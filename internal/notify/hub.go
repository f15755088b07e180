// Package notify owns the application-visible notification streams.
//
// Ownership boundary:
// - error fan-out (asynchronous channel/coordinator failures)
// - argument-batch fan-out (startup and forwarded batches)
//
// Publication is message passing into one dispatcher goroutine, so batches
// are delivered in publish order and a misbehaving subscriber cannot stall
// or crash the publisher.
package notify

import (
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultQueueSize = 128

// envelope is one queued notification; exactly one of err/batch is set.
type envelope struct {
	err   error
	batch []string
	isErr bool
}

// Hub is a two-stream multicast notifier. Zero or more subscribers may be
// added to each stream at any time; delivery order matches publish order.
type Hub struct {
	mu       sync.RWMutex
	errSubs  []func(error)
	argSubs  []func([]string)
	queue    chan envelope
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub constructs a hub and starts its dispatcher.
func NewHub() *Hub {
	h := &Hub{
		queue: make(chan envelope, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go h.dispatch()
	return h
}

// SubscribeErrors adds a listener for asynchronous failures.
func (h *Hub) SubscribeErrors(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errSubs = append(h.errSubs, fn)
}

// SubscribeArguments adds a listener for received argument batches.
func (h *Hub) SubscribeArguments(fn func([]string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.argSubs = append(h.argSubs, fn)
}

// PublishError enqueues one error notification. Fire-and-forget: the caller
// never observes subscriber failures. Publishing on a closed hub is a no-op.
func (h *Hub) PublishError(err error) {
	if err == nil {
		return
	}
	select {
	case <-h.done:
	case h.queue <- envelope{err: err, isErr: true}:
	}
}

// PublishArguments enqueues one argument batch. Batches are never reordered
// or coalesced. Publishing on a closed hub is a no-op.
func (h *Hub) PublishArguments(batch []string) {
	select {
	case <-h.done:
	case h.queue <- envelope{batch: batch}:
	}
}

// dispatch drains the queue in order, fanning each envelope out to the
// current subscriber snapshot.
func (h *Hub) dispatch() {
	for {
		select {
		case <-h.done:
			return
		case env := <-h.queue:
			if env.isErr {
				for _, fn := range h.errSnapshot() {
					h.safeCallErr(fn, env.err)
				}
				continue
			}
			for _, fn := range h.argSnapshot() {
				h.safeCallArgs(fn, env.batch)
			}
		}
	}
}

func (h *Hub) errSnapshot() []func(error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]func(error), len(h.errSubs))
	copy(out, h.errSubs)
	return out
}

func (h *Hub) argSnapshot() []func([]string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]func([]string), len(h.argSubs))
	copy(out, h.argSubs)
	return out
}

// safeCallErr isolates one subscriber: a panic is logged and dropped so the
// remaining subscribers still run.
func (h *Hub) safeCallErr(fn func(error), err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("notify.hub error subscriber panicked")
		}
	}()
	fn(err)
}

func (h *Hub) safeCallArgs(fn func([]string), batch []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("notify.hub argument subscriber panicked")
		}
	}()
	fn(batch)
}

// Close stops the dispatcher. Queued notifications not yet dispatched are
// dropped. Idempotent.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.done) })
}
