package single

import (
	"github.com/danmuck/soloctl/internal/channel"
	"github.com/danmuck/soloctl/internal/exclusivity"
	"github.com/danmuck/soloctl/internal/proc"
)

// Option adjusts coordinator collaborators, mainly so tests can substitute
// fakes for the oracle, the process table, and the channel client.
type Option func(*Coordinator)

// WithOracle replaces the exclusivity oracle.
func WithOracle(o exclusivity.Oracle) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.oracle = o
		}
	}
}

// WithProcessRegistry replaces the process registry used by recovery.
func WithProcessRegistry(r proc.Registry) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.procs = r
		}
	}
}

// WithClientFactory replaces the forwarding-channel client constructor.
func WithClientFactory(fn func(appName string, cfg channel.Config) ForwardClient) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.dial = fn
		}
	}
}
