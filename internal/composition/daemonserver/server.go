// Package daemonserver wires configuration, stores, capabilities, and the
// RPC surface into a runnable daemon.
package daemonserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"memvault/go-backend/internal/adapters/rpc"
	"memvault/go-backend/internal/chain"
	"memvault/go-backend/internal/config"
	"memvault/go-backend/internal/keyserver"
	"memvault/go-backend/internal/platform/metrics"
	"memvault/go-backend/internal/platform/privacylog"
	"memvault/go-backend/internal/platform/ratelimiter"
	"memvault/go-backend/internal/seal"
	"memvault/go-backend/internal/session"
)

// Server owns the daemon's composed components and their shutdown order.
type Server struct {
	cfg      config.Config
	rpc      *rpc.Server
	sessions *session.Manager
	closers  []io.Closer
}

// New builds a daemon from flags: the listen address, an optional config
// file, and an optional data-dir override.
func New(rpcAddr, configPath, dataDir string) (*Server, error) {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return nil, err
	}
	if rpcAddr != "" {
		cfg.RPC.Addr = rpcAddr
	}
	if dataDir != "" {
		cfg.Session.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewFromConfig(cfg)
}

// NewFromConfig builds a daemon from a validated configuration.
func NewFromConfig(cfg config.Config) (*Server, error) {
	setupLogging()
	if cfg.Seal.OpenMode {
		slog.Default().Warn("OPEN MODE: key server verification is disabled; this profile is insecure and for development only")
	}

	m := metrics.New(nil)

	store, closers, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(store, session.Config{TTL: cfg.Session.TTL}, m)

	servers := make([]keyserver.ServerInfo, 0, len(cfg.Seal.KeyServers))
	for _, entry := range cfg.Seal.KeyServers {
		key, err := entry.ServerKey()
		if err != nil {
			return nil, err
		}
		servers = append(servers, keyserver.ServerInfo{Name: entry.Name, URL: entry.URL, Key: key})
	}
	crypto, err := keyserver.NewClient(servers, keyserver.NewDevScheme(), keyserver.Options{
		Verify:  cfg.Seal.VerifyEnabled(),
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(cfg.Seal.PackageID)
	if err != nil {
		return nil, err
	}

	grants := seal.StaticGrantResolver{}
	for pair, ref := range cfg.Seal.AppGrants {
		grants[pair] = seal.ObjectRef(ref)
	}

	svc := &service{
		sessions:  sessions,
		encryptor: seal.NewEncryptor(crypto, cfg.Seal.Threshold, cfg.Seal.PackageID, m),
		decryptor: seal.NewDecryptor(sessions, seal.NewTxBuilder(grants), chainClient, crypto, m),
	}

	rpcServer := rpc.NewServer(svc, rpc.Options{
		Addr:  cfg.RPC.Addr,
		Token: cfg.RPC.Token,
		SessionLimiter: ratelimiter.New(
			cfg.Limits.SessionRequestsPerSecond,
			cfg.Limits.SessionRequestBurst,
			10*time.Minute,
		),
	})

	return &Server{cfg: cfg, rpc: rpcServer, sessions: sessions, closers: closers}, nil
}

// Run serves RPC until ctx is done, sweeping expired sessions in the
// background for memory hygiene.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if s.cfg.Session.SweepInterval > 0 {
		go s.sweepLoop(sweepCtx)
	}

	err := s.rpc.Run(ctx)
	for _, c := range s.closers {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Session.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.sessions.SweepExpired()
			if err != nil {
				slog.Default().Warn("session sweep failed", "cause", err.Error())
				continue
			}
			if removed > 0 {
				slog.Default().Debug("session sweep", "removed", removed)
			}
		}
	}
}

func buildSessionStore(cfg config.Config) (session.Store, []io.Closer, error) {
	switch cfg.Session.Store {
	case "badger":
		store, err := session.OpenBadgerStore(cfg.Session.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger session store: %w", err)
		}
		return store, []io.Closer{store}, nil
	default:
		return session.NewMemoryStore(), nil, nil
	}
}

func setupLogging() {
	handler := privacylog.WrapHandler(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(slog.New(handler))
}
