package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/buildrun"
	persistlog "voxelbuild.ai/internal/persistence/log"
	"voxelbuild.ai/internal/persistence/library"
	"voxelbuild.ai/internal/persistence/snapfile"
	"voxelbuild.ai/internal/sim/geom"
	"voxelbuild.ai/internal/sim/site"
	"voxelbuild.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml or tuning.toml (default: <configs>/tuning.yaml)")
		target     = flag.String("target", "./configs/definitions/hut.json", "definition (.json) or snapshot file to build")
		originFlag = flag.String("origin", "", "build origin x,y,z (default: 0,<ground_y>,0)")
		facing     = flag.Int("facing", 0, "quarter turns the structure faces")
		stockFlag  = flag.String("stock", "", "starting inventory ITEM=N,... (default: exactly what the target needs)")
		resume     = flag.String("resume", "", "world file to resume (optional)")
		loadLatest = flag.Bool("load_latest_world", true, "resume the latest world file of this site if present (when -resume is empty)")
		libPath    = flag.String("library", "", "snapshot library db (default: <data>/library.db)")
		disableLib = flag.Bool("disable_library", false, "do not index snapshots or record builds")
		remote     = flag.Bool("allow_remote", false, "serve observers to non-loopback clients")
		exitDone   = flag.Bool("exit_when_done", false, "shut down once the build finishes or is cancelled")
		logLevel   = flag.String("log_level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := newLogger(*logLevel)

	siteDir := filepath.Join(*dataDir, "sites", buildrun.SiteName(*target))
	worldDir := filepath.Join(siteDir, "worlds")
	_ = os.MkdirAll(worldDir, 0o755)

	resumePath := strings.TrimSpace(*resume)
	if resumePath == "" && *loadLatest {
		resumePath = buildrun.LatestWorld(worldDir)
	}

	var origin *geom.Cell
	if strings.TrimSpace(*originFlag) != "" {
		c, err := buildrun.ParseCell(*originFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("origin")
		}
		origin = &c
	}
	var stock map[string]int
	if strings.TrimSpace(*stockFlag) != "" {
		m, err := buildrun.ParseStock(*stockFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("stock")
		}
		stock = m
	}

	// The audit log is stamped with the site tick; the site exists only
	// after Prepare.
	var s *site.Site
	tickLog := persistlog.NewTickLogger(siteDir)
	auditLog := persistlog.NewAuditLogger(siteDir, func() uint64 {
		if s == nil {
			return 0
		}
		return s.Tick()
	})
	defer tickLog.Close()
	defer auditLog.Close()

	cpCh := make(chan site.Checkpoint, 2)
	run, err := buildrun.Prepare(buildrun.Options{
		ConfigDir:   *configDir,
		TuningPath:  *tuningPath,
		Target:      *target,
		Origin:      origin,
		Facing:      *facing,
		Stock:       stock,
		Resume:      resumePath,
		Checkpoints: cpCh,
		Logger:      logger,
		Site:        []site.Option{site.WithTickSink(tickLog), site.WithAudit(auditLog)},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("prepare build")
	}
	s = run.Site
	o := run.Origin.Array()
	logger.Info().
		Str("snapshot", run.Snapshot.Meta().Header.Name).
		Str("snapshot_id", run.Snapshot.Meta().Header.ID.String()).
		Ints("origin", o[:]).
		Int("facing", run.Facing).
		Str("stock", buildrun.FormatStock(s.Inventory().Map())).
		Msg("site ready")

	a := &app{run: run, worldDir: worldDir, log: logger}
	if !*disableLib {
		lp := strings.TrimSpace(*libPath)
		if lp == "" {
			lp = filepath.Join(*dataDir, "library.db")
		}
		lib, err := library.Open(lp)
		if err != nil {
			logger.Fatal().Err(err).Msg("open library")
		}
		defer lib.Close()
		a.lib = lib
		if err := registerSnapshot(context.Background(), lib, run, *target, filepath.Join(*dataDir, "snapshots")); err != nil {
			logger.Warn().Err(err).Msg("library: register snapshot")
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	go a.writeCheckpoints(ctx, cpCh)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("site stopped")
		}
		a.finish(context.Background())
		if *exitDone {
			cancel()
		}
	}()

	obs := ws.NewServer(s, run.Params(), run.Catalogs.Blocks.Palette, logger)
	obs.AllowRemote = *remote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.metricsHandler())
	mux.HandleFunc("/v1/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observe", obs.WSHandler())
	mux.HandleFunc("/admin/v1/checkpoint", a.checkpointHandler())
	mux.HandleFunc("/admin/v1/cancel", a.cancelHandler())
	if envBool("VB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
	<-runDone
}

// registerSnapshot makes sure the snapshot being built is in the library.
// Definitions are stored as snapshot files first.
func registerSnapshot(ctx context.Context, lib *library.Library, run *buildrun.Run, target, snapDir string) error {
	path := target
	if strings.EqualFold(filepath.Ext(target), ".json") {
		path = snapfile.SnapshotPath(snapDir, run.Snapshot.Meta().Header)
		if _, err := snapfile.WriteSnapshot(path, run.Snapshot); err != nil {
			return err
		}
	}
	_, err := lib.Import(ctx, path)
	return err
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}).
		Level(lvl).
		With().Timestamp().Str("svc", "server").Logger()
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

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
