package daemon

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mvalim/textsync/internal/bus"
	"github.com/mvalim/textsync/internal/config"
	"github.com/mvalim/textsync/internal/crypto"
	"github.com/mvalim/textsync/internal/importer"
	"github.com/mvalim/textsync/internal/lock"
	"github.com/mvalim/textsync/internal/logging"
	"github.com/mvalim/textsync/internal/mirror"
	"github.com/mvalim/textsync/internal/outbox"
	"github.com/mvalim/textsync/internal/reconcile"
	"github.com/mvalim/textsync/internal/remote"
	"github.com/mvalim/textsync/internal/schedule"
	"github.com/mvalim/textsync/internal/session"
	"github.com/mvalim/textsync/internal/status"
	"github.com/mvalim/textsync/internal/store"
	"github.com/mvalim/textsync/internal/telephony"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	// Transport overrides the outgoing delivery path; nil wires the
	// failing no-op transport.
	Transport outbox.Transport
}

// Remote bundles the pieces that only exist when the session is linked
// to a backup account. All fields are nil for local-only sessions.
type Remote struct {
	Client     *remote.Client
	Cipher     *crypto.Cipher
	Hook       *mirror.Hook
	Uploader   *mirror.Uploader
	Downloader *mirror.Downloader
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideSessionConfig,
			provideStore,
			provideProvider,
			provideRemote,
			provideImporter,
			provideReconcileJob,
			provideTransport,
			provideSender,
			provideScheduleJob,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideSessionConfig(p Params) (*config.Session, error) {
	return config.LoadSession(session.SessionConfigPath(p.SessionName))
}

func provideStore(p Params, logger *zap.Logger) (*store.Store, error) {
	path := session.StorePath(p.SessionName)
	s := store.New(path)
	if err := s.Acquire(); err != nil {
		return nil, err
	}
	version, err := s.SchemaVersion()
	if err != nil {
		_ = s.Release()
		return nil, err
	}
	logger.Info("store initialized", zap.String("path", path), zap.Uint("schema_version", version))
	return s, nil
}

func provideProvider(cfg *config.Session, logger *zap.Logger) (telephony.Provider, error) {
	if cfg.NativeDBPath == "" {
		logger.Warn("no native provider database configured; import and reconcile idle")
		return emptyProvider{}, nil
	}
	p, err := telephony.OpenSQLite(cfg.NativeDBPath)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func provideRemote(cfg *config.Session, s *store.Store, logger *zap.Logger) (*Remote, error) {
	if !cfg.Linked() {
		logger.Info("no backup account linked, running local-only")
		return &Remote{}, nil
	}
	cipher, err := crypto.New(cfg.Passphrase, cfg.KeySalt)
	if err != nil {
		return nil, err
	}
	client := remote.NewClient(cfg.RemoteURL, cfg.AccountID, cfg.DeviceID)
	return &Remote{
		Client:     client,
		Cipher:     cipher,
		Hook:       mirror.NewHook(client, cipher, logger, cfg.Primary),
		Uploader:   mirror.NewUploader(s, client, cipher, logger),
		Downloader: mirror.NewDownloader(s, client, cipher, logger),
	}, nil
}

func provideImporter(s *store.Store, provider telephony.Provider, cfg *config.Session, logger *zap.Logger) *importer.Importer {
	imp := importer.New(s, provider, logger)
	if cfg.ImportMessageCap > 0 {
		imp.MessageCap = cfg.ImportMessageCap
	}
	return imp
}

func provideReconcileJob(s *store.Store, provider telephony.Provider, b *bus.Bus, r *Remote, cfg *config.Session, logger *zap.Logger) *reconcile.Job {
	var uploader *mirror.Uploader
	if r.Uploader != nil && cfg.Primary {
		uploader = r.Uploader
	}
	j := reconcile.New(s, provider, b, uploader, logger)
	if cfg.ReconcileIntervalSec > 0 {
		j.Interval = time.Duration(cfg.ReconcileIntervalSec) * time.Second
	}
	return j
}

func provideTransport(p Params) outbox.Transport {
	if p.Transport != nil {
		return p.Transport
	}
	return outbox.NopTransport{}
}

func provideSender(s *store.Store, transport outbox.Transport, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(s, transport, b, logger)
}

func provideScheduleJob(s *store.Store, b *bus.Bus, transport outbox.Transport, logger *zap.Logger) *schedule.Job {
	return schedule.New(s, b, transport, logger)
}

func registerLifecycle(lc fx.Lifecycle, s *store.Store, lk *lock.Lock, r *Remote, cfg *config.Session,
	imp *importer.Importer, rec *reconcile.Job, sender *outbox.Sender, sched *schedule.Job,
	provider telephony.Provider, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if r.Hook != nil {
				s.SetMirror(r.Hook)
			}

			sender.Start(context.Background())
			sched.Start(context.Background())

			go func() {
				done, err := imp.Done()
				if err != nil {
					logger.Error("cannot read import state", zap.Error(err))
					_ = machine.Transition(status.Error)
					return
				}
				if !done {
					_ = machine.Transition(status.SetupRequired)
					_ = machine.Transition(status.Importing)
					if r.Downloader != nil && !cfg.Primary {
						// Secondary devices restore from the account
						// instead of reading a native provider.
						if err := r.Downloader.Download(context.Background()); err != nil {
							logger.Error("initial download failed", zap.Error(err))
							_ = machine.Transition(status.Error)
							return
						}
						if err := s.SetSyncValue(store.KeyImportDone, "1"); err != nil {
							logger.Error("cannot record setup completion", zap.Error(err))
							_ = machine.Transition(status.Error)
							return
						}
					} else {
						if err := imp.Run(context.Background()); err != nil {
							logger.Error("initial import failed", zap.Error(err))
							_ = machine.Transition(status.Error)
							return
						}
						if r.Uploader != nil && cfg.Primary {
							if err := r.Uploader.UploadAll(context.Background()); err != nil {
								logger.Warn("initial bulk upload incomplete", zap.Error(err))
							}
						}
					}
				}
				_ = machine.Transition(status.Syncing)

				rec.Start(context.Background())
				rec.Trigger()
				_ = machine.Transition(status.Ready)
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			sched.Stop()
			sender.Stop()
			rec.Stop()
			if r.Hook != nil {
				r.Hook.Flush()
			}
			if closer, ok := provider.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
			if err := s.Release(); err != nil {
				logger.Warn("error releasing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// emptyProvider serves sessions with no native database configured.
type emptyProvider struct{}

func (emptyProvider) Conversations(context.Context) ([]telephony.Conversation, error) {
	return nil, nil
}

func (emptyProvider) Messages(context.Context, int64, int64, int) ([]telephony.Message, error) {
	return nil, nil
}

func (emptyProvider) ConversationsSince(context.Context, int64) ([]telephony.Conversation, error) {
	return nil, nil
}
