// Package launcher owns the end-to-end launch sequence: decide the role via
// the coordinator, exit after forwarding, or settle in as the primary with
// heartbeat logging and the optional status endpoint.
package launcher

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/single"
	"github.com/danmuck/soloctl/internal/status"
)

var ErrInvalidHeartbeatInterval = errors.New("launcher: invalid heartbeat interval")

// ServiceConfig configures one launcher run.
type ServiceConfig struct {
	AppName           string
	SocketDir         string
	ClientTimeout     time.Duration
	StatusAddr        string
	HeartbeatInterval time.Duration
	Arguments         []string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ClientTimeout:     single.DefaultClientTimeout,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Service drives one launch: forward-and-exit, or run as primary until a
// shutdown signal.
type Service struct {
	cfg   ServiceConfig
	coord *single.Coordinator

	batches atomic.Uint64
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.HeartbeatInterval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	coord, err := single.New(single.Config{
		AppName:       cfg.AppName,
		SocketDir:     cfg.SocketDir,
		ClientTimeout: cfg.ClientTimeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Arguments == nil {
		cfg.Arguments = []string{}
	}
	return &Service{cfg: cfg, coord: coord}, nil
}

// Coordinator exposes the underlying coordinator, mainly for tests.
func (s *Service) Coordinator() *single.Coordinator { return s.coord }

// Run blocks until the launch is resolved: immediately when the batch was
// forwarded to a running primary, otherwise on process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	forwarded, err := s.coord.TrySend(ctx, s.cfg.Arguments)
	if err != nil {
		return err
	}
	if forwarded {
		log.Info().
			Str("app", s.coord.AppName()).
			Int("args", len(s.cfg.Arguments)).
			Msg("launcher.Service forwarded to running instance")
		return nil
	}
	return s.servePrimary(ctx)
}

// servePrimary wires subscribers, starts the channel server, and idles on
// heartbeats until shutdown.
func (s *Service) servePrimary(ctx context.Context) error {
	defer func() {
		if err := s.coord.Close(); err != nil {
			log.Warn().Err(err).Msg("launcher.Service close failed")
		}
	}()

	s.coord.OnError(func(err error) {
		log.Warn().Str("app", s.coord.AppName()).Err(err).Msg("launcher.Service channel error")
	})

	var statusSrv *status.Server
	statusErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.StatusAddr) != "" {
		statusSrv = status.New(status.Config{AppName: s.coord.AppName(), Addr: s.cfg.StatusAddr}, log.Logger)
		s.coord.OnArguments(statusSrv.Observe)
		go func() {
			statusErr <- statusSrv.Run(ctx)
		}()
	}

	s.coord.OnArguments(func(batch []string) {
		s.batches.Add(1)
		log.Info().Str("app", s.coord.AppName()).Strs("args", batch).Msg("launcher.Service arguments received")
	})

	if err := s.coord.StartWithArgs(ctx, s.cfg.Arguments); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("app", s.coord.AppName()).Msg("launcher.Service shutdown")
			return nil
		case err := <-statusErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			log.Info().
				Str("app", s.coord.AppName()).
				Int("pid", os.Getpid()).
				Uint64("batches", s.batches.Load()).
				Msg("launcher.Service heartbeat")
		}
	}
}
