package single

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/channel"
	"github.com/danmuck/soloctl/internal/exclusivity"
	"github.com/danmuck/soloctl/internal/notify"
	"github.com/danmuck/soloctl/internal/observability"
	"github.com/danmuck/soloctl/internal/proc"
)

var (
	ErrNilArguments   = errors.New("single: nil argument batch")
	ErrAlreadyStarted = errors.New("single: coordinator already started")
	ErrEmptyAppName   = errors.New("single: application name required")
)

// DefaultClientTimeout bounds one forwarding attempt (connect + send + ack).
const DefaultClientTimeout = 5 * time.Second

// Config configures one Coordinator. AppName empty means "derive from the
// running executable"; once constructed the name never changes.
type Config struct {
	AppName       string
	SocketDir     string
	ClientTimeout time.Duration
	Channel       channel.Config
}

func DefaultConfig() Config {
	return Config{
		ClientTimeout: DefaultClientTimeout,
		Channel:       channel.DefaultConfig(),
	}
}

// ForwardClient is the slice of channel.Client the coordinator needs; tests
// substitute fakes through WithClientFactory.
type ForwardClient interface {
	OnError(fn func(error))
	Send(ctx context.Context, batch []string) error
	Close() error
}

type clientFactory func(appName string, cfg channel.Config) ForwardClient

// Coordinator decides, once per process launch, whether this process
// forwards its arguments to a running primary or becomes the primary itself.
type Coordinator struct {
	appName string
	cfg     Config

	clientTimeout atomic.Int64 // nanoseconds, read at the start of each TrySend

	hub    *notify.Hub
	oracle exclusivity.Oracle
	procs  proc.Registry
	dial   clientFactory

	mu      sync.Mutex
	started bool
	server  *channel.Server
}

// New constructs a Coordinator. The application name is fixed at
// construction; when cfg.AppName is empty it is derived from the running
// executable's base name.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = DefaultClientTimeout
	}
	cfg.Channel.SocketDir = cfg.SocketDir
	cfg.Channel = cfg.Channel.WithDefaults()

	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("single: derive app name: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(exe), ".exe")
	}
	if name == "" {
		return nil, ErrEmptyAppName
	}

	c := &Coordinator{
		appName: name,
		cfg:     cfg,
		hub:     notify.NewHub(),
		oracle:  exclusivity.NewFlockOracle(cfg.SocketDir),
		procs:   proc.NewProcfsRegistry(),
		dial: func(appName string, ccfg channel.Config) ForwardClient {
			return channel.NewClient(appName, ccfg)
		},
	}
	c.clientTimeout.Store(int64(cfg.ClientTimeout))

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AppName reports the immutable exclusivity/channel key.
func (c *Coordinator) AppName() string { return c.appName }

// ClientTimeout reports the current forwarding-attempt bound.
func (c *Coordinator) ClientTimeout() time.Duration {
	return time.Duration(c.clientTimeout.Load())
}

// SetClientTimeout adjusts the forwarding-attempt bound for future TrySend
// calls; an in-flight attempt keeps the bound it started with.
func (c *Coordinator) SetClientTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultClientTimeout
	}
	c.clientTimeout.Store(int64(d))
}

// OnArguments subscribes to received argument batches (the primary's own
// startup batch plus every forwarded batch, in arrival order).
func (c *Coordinator) OnArguments(fn func([]string)) {
	c.hub.SubscribeArguments(fn)
}

// OnError subscribes to asynchronous channel and coordinator failures.
func (c *Coordinator) OnError(fn func(error)) {
	c.hub.SubscribeErrors(fn)
}

// TrySend reports whether a competing instance owns this application name.
//
// false means "no responsive instance exists; become the primary": either
// this process holds the exclusivity claim, or forwarding failed and the
// stale claimant has been recovered away. true means "a live instance
// exists"; for a non-empty batch it also means the batch was delivered.
//
// Only a nil batch is an error. Forwarding failures never surface here:
// timeouts are swallowed, anything else is published on the error stream,
// and both fall through to recovery.
func (c *Coordinator) TrySend(ctx context.Context, arguments []string) (bool, error) {
	if arguments == nil {
		return false, ErrNilArguments
	}
	timeout := c.ClientTimeout()

	if c.oracle.IsFirstInstance(c.appName) {
		log.Debug().Str("app", c.appName).Msg("single.coordinator first instance")
		return false, nil
	}

	// A holder exists and there is nothing to deliver: confirming liveness
	// is enough, and recovery must not run when no send was attempted.
	if len(arguments) == 0 {
		observability.RecordForwardAttempt(c.appName, "skipped", 0)
		return true, nil
	}

	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cl := c.dial(c.appName, c.cfg.Channel)
	cl.OnError(c.hub.PublishError)
	err := cl.Send(sendCtx, arguments)
	_ = cl.Close()

	if err == nil {
		observability.RecordForwardAttempt(c.appName, "sent", time.Since(start))
		log.Debug().Str("app", c.appName).Int("args", len(arguments)).Msg("single.coordinator batch forwarded")
		return true, nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrDeadlineExceeded) {
		// Bounded-timeout expiry under contention is expected; it is not
		// diagnostic signal and stays off the error stream.
		observability.RecordForwardAttempt(c.appName, "timeout", time.Since(start))
		log.Debug().Str("app", c.appName).Dur("timeout", timeout).Msg("single.coordinator forward timed out")
	} else {
		observability.RecordForwardAttempt(c.appName, "error", time.Since(start))
		log.Warn().Str("app", c.appName).Err(err).Msg("single.coordinator forward failed")
		c.hub.PublishError(err)
	}

	c.recoverStale()
	return false, nil
}

// recoverStale clears a presumed-stale claimant: every live same-named
// process except this one is killed, best effort. Nothing in here may
// escape; recovery runs inside a launch sequence that must complete with
// some instance able to serve the user.
func (c *Coordinator) recoverStale() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("single.coordinator recovery panicked")
		}
	}()

	handles, err := c.procs.FindByName(c.appName)
	if err != nil {
		log.Warn().Str("app", c.appName).Err(err).Msg("single.coordinator process enumeration failed")
		observability.RecordRecovery(c.appName, 0)
		return
	}

	self := os.Getpid()
	killed := 0
	for _, h := range handles {
		if h.PID() == self {
			h.Release()
			continue
		}
		if err := h.Terminate(); err != nil {
			log.Warn().Str("app", c.appName).Int("pid", h.PID()).Err(err).Msg("single.coordinator terminate failed")
		} else {
			killed++
		}
		h.Release()
	}
	observability.RecordRecovery(c.appName, killed)
	log.Info().Str("app", c.appName).Int("terminated", killed).Msg("single.coordinator recovery complete")
}

// Start brings up the primary-side channel server. The accept loop runs on
// its own goroutine and is cancelled through ctx; received batches are
// republished on the argument stream in arrival order.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.start(ctx, nil)
}

// StartWithArgs behaves like Start after first publishing the primary's own
// startup batch, so application code handles startup and forwarded
// arguments uniformly.
func (c *Coordinator) StartWithArgs(ctx context.Context, initialArguments []string) error {
	if initialArguments == nil {
		initialArguments = []string{}
	}
	return c.start(ctx, initialArguments)
}

func (c *Coordinator) start(ctx context.Context, initial []string) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true

	srv := channel.NewServer(c.appName, c.cfg.Channel)
	srv.OnError(c.hub.PublishError)
	srv.OnMessage(func(batch []string) {
		if batch == nil {
			batch = []string{}
		}
		observability.RecordBatchReceived(c.appName)
		c.hub.PublishArguments(batch)
	})
	c.server = srv
	c.mu.Unlock()

	// The startup batch enters the same ordered stream before the server
	// accepts its first client, so no forwarded batch can precede it.
	if initial != nil {
		c.hub.PublishArguments(initial)
	}

	if err := srv.Listen(); err != nil {
		// Bind failures surface synchronously and leave the coordinator
		// startable, so the caller can fall back or retry.
		c.mu.Lock()
		c.started = false
		c.server = nil
		c.mu.Unlock()
		return err
	}
	if err := srv.RelaxPermissions(); err != nil {
		log.Warn().Str("app", c.appName).Err(err).Msg("single.coordinator socket permission relax failed")
	}

	go func() {
		if err := srv.Serve(ctx); err != nil {
			c.hub.PublishError(err)
		}
	}()

	log.Info().Str("app", c.appName).Str("socket", srv.SocketPath()).Msg("single.coordinator acting as primary")
	return nil
}

// Close releases the primary server if one was started. Safe to call
// whether or not Start ran, and more than once. In-flight TrySend clients
// own their own scoped connections and are unaffected.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	srv := c.server
	c.server = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Close()
}
