package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tenacitos.ai/internal/feed"
	persistlog "tenacitos.ai/internal/persistence/log"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "office seed (per-agent roam randomness)")
		configDir  = flag.String("configs", "./configs", "config directory")
		layoutPath = flag.String("layout", "", "path to office.yaml (default: <configs>/office.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the nav event index")

		statusFile   = flag.String("status_file", "", "JSON agent list to watch (optional)")
		pollURL      = flag.String("poll_url", "", "dashboard agents endpoint to poll (optional)")
		pollInterval = flag.Duration("poll_interval", 2*time.Second, "poll interval for -poll_url")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

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

	lp := strings.TrimSpace(*layoutPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "office.yaml")
	}
	l, err := layout.Load(lp)
	if err != nil {
		logger.Fatalf("load layout: %v", err)
	}

	o, err := office.New(office.ConfigFromTuning(l.ID, *seed, tune), l)
	if err != nil {
		logger.Fatalf("office: %v", err)
	}
	logger.Printf("office=%s desks=%d graph_nodes=%d graph_edges=%d fallback=%v",
		l.ID, len(l.Desks), o.Graph().Len(), o.Graph().EdgeCount(), o.Graph().Fallback)

	officeDir := filepath.Join(*dataDir, "offices", l.ID)
	_ = os.MkdirAll(officeDir, 0o755)

	idx, err := openRuntimeIndex(officeDir, l.ID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordRun(l.ID, l.Digest, tune); err != nil {
			logger.Printf("index backend: record run: %v", err)
		}
	}

	seg := persistlog.Segment{OfficeID: l.ID, RunID: uuid.NewString(), LayoutDigest: l.Digest}
	if idx != nil {
		seg.RunID = idx.RunID()
	}
	frameLog := persistlog.NewFrameLogger(officeDir, seg)
	eventLog := persistlog.NewEventLogger(officeDir, seg)
	defer func() {
		logger.Printf("frame log: %d unchanged frames skipped", frameLog.Skipped())
		_ = frameLog.Close()
	}()
	defer eventLog.Close()
	if idx != nil {
		o.SetFrameLogger(multiFrameLogger{frameLog, idx})
		o.SetEventLogger(multiEventLogger{eventLog, idx})
	} else {
		o.SetFrameLogger(frameLog)
		o.SetEventLogger(eventLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := o.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("office stopped: %v", err)
		}
	}()

	if p := strings.TrimSpace(*statusFile); p != "" {
		ff := feed.NewFileFeed(p, o.StatusInbox(), logger)
		go func() {
			if err := ff.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("file feed stopped: %v", err)
			}
		}()
		logger.Printf("watching status file %s", p)
	}
	if u := strings.TrimSpace(*pollURL); u != "" {
		pf := feed.NewPollFeed(u, *pollInterval, o.StatusInbox(), logger)
		go func() { _ = pf.Run(ctx) }()
		logger.Printf("polling %s every %s", u, *pollInterval)
	}

	srv := newHTTPServer(*addr, serverDeps{
		office:      o,
		index:       idx,
		logger:      logger,
		enableAdmin: envBool("OFFICE_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		enablePprof: envBool("OFFICE_ENABLE_PPROF_HTTP", false),
	})

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
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

type multiFrameLogger struct {
	a office.FrameLogger
	b office.FrameLogger
}

func (m multiFrameLogger) WriteFrame(entry office.FrameLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteFrame(entry)
	}
	if m.b != nil {
		_ = m.b.WriteFrame(entry)
	}
	return nil
}

type multiEventLogger struct {
	a office.EventLogger
	b office.EventLogger
}

func (m multiEventLogger) WriteEvent(entry office.EventLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}
