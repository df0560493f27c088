// Package daemon composes the session engine: config, logging, the bus,
// the WebSocket transport, state, archive and the controller, wired
// together with fx and torn down in reverse on shutdown.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/archive"
	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/config"
	"github.com/saifulwebid/ngobrol/internal/controller"
	"github.com/saifulwebid/ngobrol/internal/dispatch"
	"github.com/saifulwebid/ngobrol/internal/logging"
	"github.com/saifulwebid/ngobrol/internal/rest"
	"github.com/saifulwebid/ngobrol/internal/session"
	"github.com/saifulwebid/ngobrol/internal/state"
	"github.com/saifulwebid/ngobrol/internal/status"
	"github.com/saifulwebid/ngobrol/internal/transport"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	MetricsAddr string // optional override for testing; empty = use config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideArchive,
			provideStore,
			providePresence,
			provideTyping,
			provideDispatcher,
			provideTransport,
			provideHistory,
			provideEngine,
			provideController,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*session.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := session.AcquireLock(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideArchive(p Params, logger *zap.Logger) (*archive.DB, error) {
	dbPath := session.ArchiveDBPath(p.SessionName)
	db, err := archive.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideStore() *state.Store {
	return state.NewStore()
}

func providePresence() *state.Presence {
	return state.NewPresence()
}

func provideTyping(cfg *config.Config, b *bus.Bus) *state.Typing {
	return state.NewTyping(cfg.TypingExpiry(), b)
}

func provideDispatcher(store *state.Store, presence *state.Presence, typing *state.Typing, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(store, presence, typing, b, logger)
}

func provideTransport(cfg *config.Config, machine *status.Machine, d *dispatch.Dispatcher, logger *zap.Logger) *transport.Manager {
	return transport.NewManager(cfg.ServerURL, cfg.Handshake, machine, d.HandleFrame, logger)
}

func provideHistory(cfg *config.Config) controller.HistoryFetcher {
	if cfg.APIBaseURL == "" {
		return nil
	}
	return rest.New(cfg.APIBaseURL)
}

func provideEngine(db *archive.DB, b *bus.Bus, store *state.Store, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, store.Owner, logger)
}

func provideController(mgr *transport.Manager, store *state.Store, typing *state.Typing, history controller.HistoryFetcher, b *bus.Bus, logger *zap.Logger) *controller.Controller {
	return controller.New(mgr, store, typing, history, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *session.Lock, db *archive.DB, engine *archive.Engine, ctrl *controller.Controller, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start archive engine (subscribes to chat.* bus events).
			engine.Start(context.Background())

			// Serve /metrics and /healthz in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()

			// Log in right away when the session is preconfigured.
			if cfg.UserID != "" {
				go func() {
					if err := ctrl.Login(context.Background(), cfg.UserID); err != nil {
						logger.Error("auto-login failed", zap.Error(err), zap.String("user", cfg.UserID))
					}
				}()
			} else {
				logger.Info("no user configured, waiting for login")
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctrl.Logout()
			engine.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
