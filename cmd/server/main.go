package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"digstream.live/internal/chatfeed"
	persistlog "digstream.live/internal/persistence/log"
	"digstream.live/internal/protocol"
	"digstream.live/internal/sim/catalogs"
	"digstream.live/internal/sim/ingest"
	"digstream.live/internal/sim/simclock"
	"digstream.live/internal/sim/tuning"
	"digstream.live/internal/sim/world"
	"digstream.live/internal/transport/observer"
	"digstream.live/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		streamID   = flag.String("stream", "main", "stream id (names the data directory)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		cooldown   = flag.Float64("cooldown", 0, "cooldown window in seconds (overrides tuning when > 0)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit + catalogs)")
		feedURL    = flag.String("feed_url", "", "chat feed endpoint to poll (optional; bridges can also use /v1/chat)")

		replayHistory = flag.Bool("feed_replay_history", false, "process the chat backlog returned by the first feed fetch")
		remoteObs     = flag.Bool("observer_allow_remote", false, "allow observer connections from non-loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if err := tuning.ApplyEnv(&tune, nil); err != nil {
		logger.Fatalf("tuning env: %v", err)
	}
	if *cooldown > 0 {
		tune.CooldownWindowSeconds = *cooldown
	}

	streamDir := filepath.Join(*dataDir, "streams", *streamID)
	_ = os.MkdirAll(streamDir, 0o755)

	// Optional read model; the JSONL logs stay authoritative.
	idx, err := openRuntimeIndex(streamDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	clock := simclock.NewStepped(simclock.System{})
	wcfg, scfg := world.ConfigFromTuning(*streamID, tune)
	sess, err := world.NewSession(clock, cats, scfg)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}
	queue := ingest.New(tune.IngestCapacity, logger)
	w, err := world.New(wcfg, sess, queue, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	tickLog := persistlog.NewTickLogger(streamDir)
	auditLog := persistlog.NewAuditLogger(streamDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}
	hub := observer.NewHub()
	w.SetEventSink(hub)

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	var poller *chatfeed.Poller
	if u := strings.TrimSpace(*feedURL); u != "" {
		src := chatfeed.NewHTTPSource(u, time.Duration(tune.Feed.FetchTimeoutMs)*time.Millisecond)
		poller = chatfeed.NewPoller(src, queue, simclock.System{}, chatfeed.Config{
			Interval:      time.Duration(tune.Feed.PollIntervalMs) * time.Millisecond,
			ReplayHistory: *replayHistory,
		}, log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lmicroseconds))
		g.Go(func() error { return poller.Run(gctx) })
		logger.Printf("polling chat feed %s every %dms", u, tune.Feed.PollIntervalMs)
	}

	chatSrv := ws.NewServer(queue, validator, simclock.System{}, logger)
	obsSrv := observer.NewServer(w, hub, cats.Blocks, validator, logger)
	obsSrv.AllowRemote = *remoteObs

	deps := httpDeps{
		world:  w,
		index:  idx,
		chat:   chatSrv,
		hub:    hub,
		poller: poller,
		logs:   []lineCounter{tickLog, auditLog},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", deps.metricsHandler())
	mux.HandleFunc("/v1/chat", chatSrv.Handler())
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("DIG_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		deps.registerAdmin(mux)
	} else {
		logger.Printf("admin endpoints disabled (DIG_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("DIG_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Printf("listening on %s stream=%s tick_rate=%dHz cooldown=%.0fs", *addr, *streamID, tune.TickRateHz, tune.CooldownWindowSeconds)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
	}
	logger.Printf("shutdown complete tick=%d", w.CurrentTick())
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
