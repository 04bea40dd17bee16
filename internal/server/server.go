// Package server orchestrates all components: NATS client, gallery storage,
// UI loop, dispatcher, HTTP health and metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/morezero/native-share/internal/config"
	"github.com/morezero/native-share/internal/tracing"
	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/db"
	"github.com/morezero/native-share/pkg/dispatcher"
	"github.com/morezero/native-share/pkg/events"
	"github.com/morezero/native-share/pkg/gallery"
	"github.com/morezero/native-share/pkg/imagefs"
	"github.com/morezero/native-share/pkg/manifest"
	"github.com/morezero/native-share/pkg/metrics"
	"github.com/morezero/native-share/pkg/sheet"
	"github.com/morezero/native-share/pkg/uiloop"
)

const logPrefix = "server:server"

// galleryStore is what the server needs from a gallery backend.
type galleryStore interface {
	gallery.AssetStore
	gallery.StateStore
}

// Server is the native-share orchestrator.
type Server struct {
	cfg      *config.Config
	manifest *manifest.Manifest
	nc       *comms.Conn
	pool     *pgxpool.Pool
	store    galleryStore
	loop     *uiloop.Loop
	disp     *dispatcher.Dispatcher
	metrics  *metrics.Recorder
	limiter  *rate.Limiter

	// ctx is the base context of every call; cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
	subs     []*comms.Subscription
	ready    atomic.Bool
	started  time.Time
}

// New wires the providers and dispatcher. pool is required only for the
// postgres gallery backend.
func New(cfg *config.Config, nc *comms.Conn, pool *pgxpool.Pool) (*Server, error) {
	m, err := manifest.Load(cfg.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load manifest: %w", logPrefix, err)
	}
	m = m.WithSubjects(manifest.Subjects{
		Channel:    cfg.ChannelSubject,
		Sheet:      cfg.SheetSubject,
		Permission: cfg.PermissionSubject,
		SavedEvent: cfg.SavedEventSubject,
	})

	store, err := openStore(cfg, pool)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		manifest: m,
		nc:       nc,
		pool:     pool,
		store:    store,
		loop:     uiloop.New("ui", cfg.UIQueueDepth),
		metrics:  metrics.NewRecorder(),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.CallRateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.CallRateLimit), cfg.CallRateBurst)
	}

	comPub := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SavedSubject: m.Subjects.SavedEvent})
	publisher := events.Multi(events.PublisherFunc(func(_ context.Context, e *events.AssetSavedEvent) error {
		s.metrics.AssetSaved(e.Format)
		return nil
	}), comPub)

	s.disp = dispatcher.NewDispatcher(dispatcher.Providers{
		Images:     imagefs.NewLoader(0),
		Surface:    sheet.NewSurface(nc, m.Subjects.Sheet),
		UI:         s.loop,
		Authorizer: gallery.NewAuthorizer(store, gallery.NewCommsPrompter(nc, m.Subjects.Permission)),
		Writer:     gallery.NewWriter(store, publisher),
	}, dispatcher.WithRecorder(s.metrics))
	return s, nil
}

func openStore(cfg *config.Config, pool *pgxpool.Pool) (galleryStore, error) {
	switch cfg.GalleryBackend {
	case config.BackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("%s - postgres gallery backend needs a database pool", logPrefix)
		}
		return gallery.NewPostgresStore(db.NewRepository(pool)), nil
	default:
		store, err := gallery.NewDirStore(cfg.GalleryDir)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to open gallery dir: %w", logPrefix, err)
		}
		return store, nil
	}
}

// Manifest returns the channel manifest being served.
func (s *Server) Manifest() *manifest.Manifest {
	return s.manifest
}

// Start runs the UI loop and subscribes to the channel and manifest subjects.
func (s *Server) Start() error {
	s.loop.Start()

	sub, err := s.nc.Subscribe(s.manifest.Subjects.Channel, s.handleCall)
	if err != nil {
		s.loop.Stop()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.manifest.Subjects.Channel, err)
	}
	s.subs = append(s.subs, sub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.manifest.Subjects.Channel))

	manifestSub, err := s.nc.Subscribe(s.manifest.Subjects.Manifest, func(msg *comms.Msg) {
		if err := commsutil.RespondJSON(msg, s.manifest); err != nil {
			slog.Error(fmt.Sprintf("%s - manifest response: %v", logPrefix, err))
		}
	})
	if err != nil {
		sub.Unsubscribe()
		s.loop.Stop()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.manifest.Subjects.Manifest, err)
	}
	s.subs = append(s.subs, manifestSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.manifest.Subjects.Manifest))

	if err := s.nc.Flush(); err != nil {
		slog.Warn(fmt.Sprintf("%s - flush after subscribe: %v", logPrefix, err))
	}
	s.started = time.Now()
	s.ready.Store(true)
	return nil
}

// handleCall decodes one channel request and dispatches it. It returns
// before the call completes; the reply is sent from the slot's sink.
func (s *Server) handleCall(msg *comms.Msg) {
	var env dispatcher.CallEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		resp := dispatcher.Failure(dispatcher.CodeInvalidArguments, "Failed to decode request").Response("")
		if err := commsutil.RespondJSON(msg, resp); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
		}
		return
	}

	s.mu.Lock()
	tracked := !s.closing
	if tracked {
		s.inflight.Add(1)
	}
	s.mu.Unlock()

	slot := dispatcher.NewReplySlot(env.ID, func(id string, res dispatcher.CallResult) {
		if tracked {
			defer s.inflight.Done()
		}
		if err := commsutil.RespondJSON(msg, res.Response(id)); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond to id=%s: %v", logPrefix, id, err))
		}
	})

	if s.limiter == nil {
		s.disp.Dispatch(s.ctx, &env, slot)
		return
	}
	go func() {
		// A cancelled wait still dispatches: the call then fails fast with its terminal code.
		_ = s.limiter.Wait(s.ctx)
		s.disp.Dispatch(s.ctx, &env, slot)
	}()
}

// Shutdown stops intake, fails pending waits, and waits for every
// outstanding reply to be sent or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", logPrefix, sub.Subject, err))
		}
	}
	s.subs = nil

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("%s - replies still pending at shutdown: %w", logPrefix, ctx.Err())
	}
	s.loop.Stop()
	return err
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Starting native-share", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Tracing
	shutdownTracing, err := tracing.Setup(ctx, cfg.COMMSName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("%s - failed to set up tracing: %w", logPrefix, err)
	}
	defer func() {
		flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn(fmt.Sprintf("%s - tracing shutdown: %v", logPrefix, err))
		}
	}()

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	defer nc.Close()
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 3: Connect to database (postgres gallery only)
	var pool *pgxpool.Pool
	if cfg.UsesDatabase() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
	}

	// Step 4: Providers, dispatcher, subscriptions
	s, err := New(cfg, nc, pool)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	// Step 5: HTTP health, metrics and status page
	httpServer := &http.Server{Addr: cfg.Addr(), Handler: s.Router()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, cfg.Addr()))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - native-share is ready on channel %s", logPrefix, s.manifest.Subjects.Channel))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.Warn(err.Error())
	}
	httpServer.Shutdown(shutdownCtx)
	nc.Drain()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}
